// Package mailer sends signup OTPs and password reset tokens over SMTP.
//
// Sends go through a circuit breaker so a dead relay fails fast instead of
// holding every signup request for the dial timeout. The engine treats any
// send error as "not delivered" and never fails the request on it.
package mailer
