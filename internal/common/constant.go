// Package common contains shared constants and sentinel errors used across
// the portal packages.
package common

// SessionCookieName is the cookie that carries the signed session token.
const SessionCookieName = "portal_session"

// CSRFFieldName is the form field holding the per-session anti-forgery token.
const CSRFFieldName = "csrf_token"
