package auth

// Kind tags which credential a request presented. It is decided once in
// Gate.Authorize and never re-derived from the key string afterwards.
type Kind int

const (
	KindAnonymous Kind = iota
	KindServiceKey
	KindAdminToken
)

func (k Kind) String() string {
	switch k {
	case KindServiceKey:
		return "userServiceKey"
	case KindAdminToken:
		return "adminToken"
	default:
		return "anonymous"
	}
}

// Principal is the resolved caller of one request
type Principal struct {
	Kind Kind

	// service key
	UserID  string
	Service string

	// admin token
	Token     string
	TokenName string

	IP string
}

// Anonymous reports whether no key was presented
func (p Principal) Anonymous() bool {
	return p.Kind == KindAnonymous
}

// Subject identifies the principal in logs without exposing the raw key
func (p Principal) Subject() string {
	switch p.Kind {
	case KindServiceKey:
		return "user:" + p.UserID
	case KindAdminToken:
		return "token:" + MaskKey(p.Token)
	default:
		return "ip:" + p.IP
	}
}
