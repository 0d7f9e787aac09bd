package probe

import (
	"crypto/tls"
	"math"
	"time"
)

// Certificate states.
const (
	CertValid    = "valid"
	CertExpiring = "expiring"
	CertExpired  = "expired"
)

// ExpiryWarning is how close to NotAfter a certificate counts as expiring.
const ExpiryWarning = 30 * 24 * time.Hour

// CertStatus describes a storefront's leaf certificate as seen by the probe.
type CertStatus struct {
	Issuer   string
	NotAfter time.Time
	DaysLeft int
	State    string
}

// inspectCert reads the leaf certificate from an established connection.
// It returns nil for plain-HTTP responses.
func inspectCert(cs *tls.ConnectionState, now time.Time) *CertStatus {
	if cs == nil || len(cs.PeerCertificates) == 0 {
		return nil
	}
	leaf := cs.PeerCertificates[0]
	left := leaf.NotAfter.Sub(now)

	st := &CertStatus{
		Issuer:   leaf.Issuer.CommonName,
		NotAfter: leaf.NotAfter.UTC(),
		DaysLeft: int(math.Floor(left.Hours() / 24)),
	}
	switch {
	case left <= 0:
		st.State = CertExpired
	case left <= ExpiryWarning:
		st.State = CertExpiring
	default:
		st.State = CertValid
	}
	return st
}
