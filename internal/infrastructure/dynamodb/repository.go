package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	GetItem(ctx context.Context, in *awsv2dynamodb.GetItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *awsv2dynamodb.UpdateItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *awsv2dynamodb.TransactWriteItemsInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *awsv2dynamodb.DescribeTableInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.DescribeTableOutput, error)
}

type Client struct {
	db        API
	tableName string
}

func NewClient(ctx context.Context, region, tableName, endpoint string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg, func(o *awsv2dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Client{db: client, tableName: tableName}, nil
}

func NewClientWithAPI(api API, tableName string) *Client {
	return &Client{db: api, tableName: tableName}
}

const (
	metaSK         = "META"
	counterPK      = "COUNTER"
	counterSK      = "APPLICATION"
	listIndex      = "GSI1"
	listPartition  = "APPLICATION"
	entityApp      = "APPLICATION"
	entityIDNumber = "ID_NUMBER"
)

func appPK(id int64) string             { return "APP#" + strconv.FormatInt(id, 10) }
func idNumberPK(idNumber string) string { return "IDNUM#" + idNumber }

// listSK zero-pads the id so lexical order on the index is creation order.
func listSK(id int64) string { return fmt.Sprintf("%020d", id) }

func isConditionalCheckFailure(err error) (*awsv2types.ConditionalCheckFailedException, bool) {
	var condErr *awsv2types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return condErr, true
	}
	return nil, false
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

type applicationItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	EntityType      string  `dynamodbav:"EntityType"`
	GSI1PK          string  `dynamodbav:"GSI1PK"`
	GSI1SK          string  `dynamodbav:"GSI1SK"`
	ID              int64   `dynamodbav:"ID"`
	FullName        string  `dynamodbav:"FullName"`
	DateOfBirth     string  `dynamodbav:"DateOfBirth"`
	IDNumber        string  `dynamodbav:"IDNumber"`
	Country         string  `dynamodbav:"Country"`
	Address         string  `dynamodbav:"Address"`
	SelfieRef       *string `dynamodbav:"SelfieRef,omitempty"`
	IDDocumentRef   *string `dynamodbav:"IDDocumentRef,omitempty"`
	Status          string  `dynamodbav:"Status"`
	RejectionReason *string `dynamodbav:"RejectionReason,omitempty"`
	CreatedAt       string  `dynamodbav:"CreatedAt"`
	UpdatedAt       string  `dynamodbav:"UpdatedAt,omitempty"`
}

func toItem(app domain.Application) applicationItem {
	item := applicationItem{
		PK:              appPK(app.ID),
		SK:              metaSK,
		EntityType:      entityApp,
		GSI1PK:          listPartition,
		GSI1SK:          listSK(app.ID),
		ID:              app.ID,
		FullName:        app.FullName,
		DateOfBirth:     app.DateOfBirth.String(),
		IDNumber:        app.IDNumber,
		Country:         app.Country,
		Address:         app.Address,
		SelfieRef:       app.SelfieRef,
		IDDocumentRef:   app.IDDocumentRef,
		Status:          string(app.Status),
		RejectionReason: app.RejectionReason,
		CreatedAt:       app.CreatedAt.Format(time.RFC3339Nano),
	}
	if app.UpdatedAt != nil {
		item.UpdatedAt = app.UpdatedAt.Format(time.RFC3339Nano)
	}
	return item
}

func fromAttributes(av map[string]awsv2types.AttributeValue) (domain.Application, error) {
	var raw applicationItem
	if err := attributevalue.UnmarshalMap(av, &raw); err != nil {
		return domain.Application{}, persistence("decode application", err)
	}
	status, err := domain.ParseStatus(raw.Status)
	if err != nil {
		return domain.Application{}, persistence("decode application", err)
	}
	dob, err := domain.ParseDate(raw.DateOfBirth)
	if err != nil {
		return domain.Application{}, persistence("decode application", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil {
		return domain.Application{}, persistence("decode application", err)
	}
	app := domain.Application{
		ID:              raw.ID,
		FullName:        raw.FullName,
		DateOfBirth:     dob,
		IDNumber:        raw.IDNumber,
		Country:         raw.Country,
		Address:         raw.Address,
		SelfieRef:       raw.SelfieRef,
		IDDocumentRef:   raw.IDDocumentRef,
		Status:          status,
		RejectionReason: raw.RejectionReason,
		CreatedAt:       createdAt,
	}
	if raw.UpdatedAt != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, raw.UpdatedAt)
		if err != nil {
			return domain.Application{}, persistence("decode application", err)
		}
		app.UpdatedAt = &updatedAt
	}
	return app, nil
}

type ApplicationRepository struct{ client *Client }

func NewApplicationRepository(client *Client) *ApplicationRepository {
	return &ApplicationRepository{client: client}
}

func (r *ApplicationRepository) nextID(ctx context.Context) (int64, error) {
	var out *awsv2dynamodb.UpdateItemOutput
	err := xray.Capture(ctx, "DynamoDB.NextApplicationID", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName: aws.String(r.client.tableName),
			Key: map[string]awsv2types.AttributeValue{
				"PK": &awsv2types.AttributeValueMemberS{Value: counterPK},
				"SK": &awsv2types.AttributeValueMemberS{Value: counterSK},
			},
			UpdateExpression: aws.String("ADD Seq :one"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":one": &awsv2types.AttributeValueMemberN{Value: "1"},
			},
			ReturnValues: awsv2types.ReturnValueUpdatedNew,
		})
		return e
	})
	if err != nil {
		return 0, persistence("allocate application id", err)
	}
	var seq struct {
		Seq int64 `dynamodbav:"Seq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &seq); err != nil || seq.Seq <= 0 {
		return 0, persistence("allocate application id", errors.New("counter returned no sequence"))
	}
	return seq.Seq, nil
}

// Create writes the application and an id-number guard item in one
// transaction; the guard's condition is what enforces uniqueness.
func (r *ApplicationRepository) Create(ctx context.Context, app domain.Application) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(app.Status)); err != nil {
		return domain.Application{}, err
	}
	id, err := r.nextID(ctx)
	if err != nil {
		return domain.Application{}, err
	}
	app.ID = id
	appAV, err := attributevalue.MarshalMap(toItem(app))
	if err != nil {
		return domain.Application{}, persistence("encode application", err)
	}
	guardAV, err := attributevalue.MarshalMap(map[string]any{
		"PK":            idNumberPK(app.IDNumber),
		"SK":            metaSK,
		"EntityType":    entityIDNumber,
		"ApplicationID": app.ID,
	})
	if err != nil {
		return domain.Application{}, persistence("encode id number guard", err)
	}
	err = xray.Capture(ctx, "DynamoDB.PutApplication", func(ctx context.Context) error {
		_, err := r.client.db.TransactWriteItems(ctx, &awsv2dynamodb.TransactWriteItemsInput{
			TransactItems: []awsv2types.TransactWriteItem{
				{Put: &awsv2types.Put{
					TableName:           aws.String(r.client.tableName),
					Item:                appAV,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				}},
				{Put: &awsv2types.Put{
					TableName:           aws.String(r.client.tableName),
					Item:                guardAV,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				}},
			},
		})
		return err
	})
	if err != nil {
		var canceled *awsv2types.TransactionCanceledException
		if errors.As(err, &canceled) && len(canceled.CancellationReasons) == 2 &&
			aws.ToString(canceled.CancellationReasons[1].Code) == "ConditionalCheckFailed" {
			return domain.Application{}, domain.ErrDuplicateIdentifier
		}
		return domain.Application{}, persistence("create application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (domain.Application, error) {
	var out *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, "DynamoDB.GetApplication", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName: aws.String(r.client.tableName),
			Key: map[string]awsv2types.AttributeValue{
				"PK": &awsv2types.AttributeValueMemberS{Value: appPK(id)},
				"SK": &awsv2types.AttributeValueMemberS{Value: metaSK},
			},
			ConsistentRead: aws.Bool(true),
		})
		return e
	})
	if err != nil {
		return domain.Application{}, persistence("get application", err)
	}
	if out.Item == nil {
		return domain.Application{}, domain.ErrNotFound
	}
	return fromAttributes(out.Item)
}

func (r *ApplicationRepository) GetByIDNumber(ctx context.Context, idNumber string) (domain.Application, error) {
	var out *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, "DynamoDB.GetIDNumber", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName: aws.String(r.client.tableName),
			Key: map[string]awsv2types.AttributeValue{
				"PK": &awsv2types.AttributeValueMemberS{Value: idNumberPK(idNumber)},
				"SK": &awsv2types.AttributeValueMemberS{Value: metaSK},
			},
			ConsistentRead: aws.Bool(true),
		})
		return e
	})
	if err != nil {
		return domain.Application{}, persistence("get id number", err)
	}
	if out.Item == nil {
		return domain.Application{}, domain.ErrNotFound
	}
	var guard struct {
		ApplicationID int64 `dynamodbav:"ApplicationID"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &guard); err != nil {
		return domain.Application{}, persistence("decode id number guard", err)
	}
	return r.GetByID(ctx, guard.ApplicationID)
}

func (r *ApplicationRepository) listQuery(status *domain.Status, projection string) *awsv2dynamodb.QueryInput {
	in := &awsv2dynamodb.QueryInput{
		TableName:              aws.String(r.client.tableName),
		IndexName:              aws.String(listIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: listPartition},
		},
		ScanIndexForward: aws.Bool(true),
	}
	names := map[string]string{}
	if status != nil {
		in.FilterExpression = aws.String("#s = :status")
		in.ExpressionAttributeValues[":status"] = &awsv2types.AttributeValueMemberS{Value: string(*status)}
		names["#s"] = "Status"
	}
	if projection != "" {
		in.ProjectionExpression = aws.String(projection)
		names["#s"] = "Status"
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}
	return in
}

// List walks the creation-ordered index, skipping Offset matches. The index
// is eventually consistent, so pages may miss very recent submissions.
func (r *ApplicationRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Application, error) {
	out := make([]domain.Application, 0, filter.Limit)
	if filter.Limit <= 0 {
		return out, nil
	}
	skipped := 0
	paginator := awsv2dynamodb.NewQueryPaginator(r.client.db, r.listQuery(filter.Status, ""))
	for paginator.HasMorePages() {
		var page *awsv2dynamodb.QueryOutput
		err := xray.Capture(ctx, "DynamoDB.QueryApplications", func(ctx context.Context) error {
			var e error
			page, e = paginator.NextPage(ctx)
			return e
		})
		if err != nil {
			return nil, persistence("list applications", err)
		}
		for _, item := range page.Items {
			if skipped < filter.Offset {
				skipped++
				continue
			}
			app, err := fromAttributes(item)
			if err != nil {
				return nil, err
			}
			out = append(out, app)
			if len(out) == filter.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// UpdateStatus applies the transition only while the stored status still
// equals update.From. The old item returned on a failed condition tells a
// missing application apart from one that was already decided.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, update domain.StatusUpdate) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(update.To)); err != nil {
		return domain.Application{}, err
	}
	values := map[string]awsv2types.AttributeValue{
		":from": &awsv2types.AttributeValueMemberS{Value: string(update.From)},
		":to":   &awsv2types.AttributeValueMemberS{Value: string(update.To)},
		":u":    &awsv2types.AttributeValueMemberS{Value: update.UpdatedAt.Format(time.RFC3339Nano)},
	}
	expr := "SET #s = :to, UpdatedAt = :u REMOVE RejectionReason"
	if update.To == domain.StatusRejected && update.RejectionReason != nil {
		expr = "SET #s = :to, UpdatedAt = :u, RejectionReason = :r"
		values[":r"] = &awsv2types.AttributeValueMemberS{Value: *update.RejectionReason}
	}

	var out *awsv2dynamodb.UpdateItemOutput
	err := xray.Capture(ctx, "DynamoDB.UpdateApplicationStatus", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName: aws.String(r.client.tableName),
			Key: map[string]awsv2types.AttributeValue{
				"PK": &awsv2types.AttributeValueMemberS{Value: appPK(update.ID)},
				"SK": &awsv2types.AttributeValueMemberS{Value: metaSK},
			},
			UpdateExpression:                    aws.String(expr),
			ConditionExpression:                 aws.String("attribute_exists(PK) AND #s = :from"),
			ExpressionAttributeNames:            map[string]string{"#s": "Status"},
			ExpressionAttributeValues:           values,
			ReturnValues:                        awsv2types.ReturnValueAllNew,
			ReturnValuesOnConditionCheckFailure: awsv2types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		return e
	})
	if condErr, ok := isConditionalCheckFailure(err); ok {
		if len(condErr.Item) == 0 {
			return domain.Application{}, domain.ErrNotFound
		}
		return domain.Application{}, domain.ErrInvalidState
	}
	if err != nil {
		return domain.Application{}, persistence("update application status", err)
	}
	return fromAttributes(out.Attributes)
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	paginator := awsv2dynamodb.NewQueryPaginator(r.client.db, r.listQuery(nil, "#s"))
	for paginator.HasMorePages() {
		var page *awsv2dynamodb.QueryOutput
		err := xray.Capture(ctx, "DynamoDB.CountApplications", func(ctx context.Context) error {
			var e error
			page, e = paginator.NextPage(ctx)
			return e
		})
		if err != nil {
			return domain.Stats{}, persistence("count applications", err)
		}
		for _, item := range page.Items {
			s, ok := item["Status"].(*awsv2types.AttributeValueMemberS)
			if !ok {
				continue
			}
			switch domain.Status(s.Value) {
			case domain.StatusPending:
				stats.Pending++
			case domain.StatusApproved:
				stats.Approved++
			case domain.StatusRejected:
				stats.Rejected++
			}
		}
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

func (r *ApplicationRepository) Ping(ctx context.Context) error {
	return xray.Capture(ctx, "DynamoDB.DescribeTable", func(ctx context.Context) error {
		_, err := r.client.db.DescribeTable(ctx, &awsv2dynamodb.DescribeTableInput{TableName: aws.String(r.client.tableName)})
		return err
	})
}
