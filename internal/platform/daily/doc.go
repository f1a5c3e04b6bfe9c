// Package daily is the adapter for the Daily.co REST API.
//
// It creates rooms, starts cloud recordings, looks up recording artifacts and
// downloads them. Non-2xx responses are returned as *domain.RemoteServiceError
// so callers can record the response body. Webhook signatures are verified
// with VerifyWebhookSignature.
package daily
