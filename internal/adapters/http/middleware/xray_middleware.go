package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens a segment per request and records the method, URL
// and final status on it.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)

			seg.Lock()
			seg.GetHTTP().GetRequest().Method = req.Method
			seg.GetHTTP().GetRequest().URL = req.URL.String()
			seg.GetHTTP().GetRequest().ClientIP = c.RealIP()
			seg.Unlock()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			seg.Lock()
			seg.GetHTTP().GetResponse().Status = status
			if status >= 500 {
				seg.Fault = true
			} else if status >= 400 {
				seg.Error = true
			}
			seg.Unlock()
			seg.Close(nil)
			return err
		}
	}
}
