// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

// VerifierSession is the opaque pair returned by the verifier backend. AppURL
// is what gets encoded into the QR code for the wallet to scan.
type VerifierSession struct {
	SessionID string `json:"sessionID"`
	AppURL    string `json:"appUrl"`
}

type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusSuccess  SessionStatus = "success"
	SessionStatusVerified SessionStatus = "verified"
	SessionStatusError    SessionStatus = "error"
	SessionStatusRejected SessionStatus = "rejected"
	SessionStatusExpired  SessionStatus = "expired"
)

// Offer is the result of issuing a credential: the link a wallet app opens to
// accept it.
type Offer struct {
	Schema string `json:"schema"`
	AppURL string `json:"appUrl"`
}
