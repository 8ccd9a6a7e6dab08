package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
)

var (
	firstNames = []string{"Amina", "Brian", "Chen", "Daniela", "Emeka", "Fatuma", "Grace", "Hiroshi", "Ivan", "Wanjiru"}
	lastNames  = []string{"Otieno", "Kamau", "Smith", "Okafor", "Garcia", "Nakamura", "Petrov", "Mwangi", "Haddad", "Njoroge"}
	countries  = []string{"Kenya", "Nigeria", "Uganda", "Tanzania", "Ghana", "South Africa", "Rwanda", "Ethiopia"}
	streets    = []string{"Moi Avenue", "Kenyatta Road", "Ngong Lane", "Harbour Street", "Market Road", "Station Way"}
	cities     = []string{"Nairobi", "Mombasa", "Lagos", "Kampala", "Accra", "Kigali", "Arusha"}

	rejectionReasons = []string{
		"Invalid document provided",
		"Photo quality too poor",
		"Information mismatch",
		"Suspected fraudulent document",
		"Incomplete application",
	}
)

type workflow interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.Application, error)
	Review(ctx context.Context, id int64, action domain.Status, reason string) (domain.Application, error)
}

type seeder struct {
	svc workflow
	rnd *rand.Rand
	now time.Time
}

func newSeeder(svc workflow, rnd *rand.Rand) *seeder {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6b7963))
	}
	return &seeder{svc: svc, rnd: rnd, now: time.Now().UTC()}
}

func pick[T any](r *rand.Rand, items []T) T { return items[r.IntN(len(items))] }

func (s *seeder) submission() domain.Submission {
	age := 18 + s.rnd.IntN(62)
	dob := s.now.AddDate(-age, 0, -s.rnd.IntN(365))
	return domain.Submission{
		FullName:    pick(s.rnd, firstNames) + " " + pick(s.rnd, lastNames),
		DateOfBirth: dob.Format("2006-01-02"),
		IDNumber:    fmt.Sprintf("%010d", s.rnd.Int64N(9_000_000_000)+1_000_000_000),
		Country:     pick(s.rnd, countries),
		Address:     fmt.Sprintf("%d %s, %s", 1+s.rnd.IntN(999), pick(s.rnd, streets), pick(s.rnd, cities)),
	}
}

// Seed submits count applications and reviews each to a random outcome.
// Id-number collisions are retried with a fresh number.
func (s *seeder) Seed(ctx context.Context, count int) (int, error) {
	created := 0
	for created < count {
		app, err := s.svc.Submit(ctx, s.submission())
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++

		switch pick(s.rnd, []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusRejected}) {
		case domain.StatusApproved:
			_, err = s.svc.Review(ctx, app.ID, domain.StatusApproved, "")
		case domain.StatusRejected:
			_, err = s.svc.Review(ctx, app.ID, domain.StatusRejected, pick(s.rnd, rejectionReasons))
		}
		if err != nil {
			return created, err
		}
	}
	return created, nil
}
