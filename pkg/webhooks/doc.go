// Package webhooks delivers audit events to external endpoints.
//
// A Notifier implements audit.Logger, so it joins the audit fan-out next to
// the service log and the audit file:
//
//	notifier := webhooks.NewNotifier(webhooks.Config{
//		Endpoints: []webhooks.Endpoint{{
//			URL:    "https://ops.example.com/hooks/helpdesk",
//			Secret: secret,
//			Events: []audit.EventType{audit.EventTypeConfigReload},
//		}},
//	}, logger, metrics)
//	auditLog := audit.NewMultiLogger(audit.NewLogrusLogger(logger), notifier)
//
// # Payloads
//
// json endpoints receive a Notification. slack and teams endpoints receive
// an incoming-webhook message summarising the event.
//
// # Signatures
//
// When an endpoint has a secret, every request carries
//
//	X-Helpdesk-Signature: sha256=<hex HMAC-SHA256 of the body>
//
// which receivers check with VerifySignature. X-Helpdesk-Delivery holds the
// notification id and is stable across retries.
//
// # Retries
//
// Transport errors, 5xx, 408 and 429 are retried with exponential backoff.
// Other 4xx answers are final.
package webhooks
