// Package settings loads process configuration for the StayEase server
// from the environment, an optional .env file and an optional YAML file,
// and maps it onto the engine, HTTP and mailer configs.
//
// Environment variables keep the names the service has always used
// (PORT, MONGODB_URI, ACCESS_TOKEN_SECRET, SMTP_HOST, ...), so existing
// deployments need no changes.
package settings
