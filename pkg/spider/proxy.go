package spider

import (
	"fmt"
	"strings"
)

// ProxyType is the proxy pool a request is routed through.
type ProxyType string

// Proxy pools. "datacenter" is accepted on input as an alias for ProxyISP.
const (
	ProxyResidential        ProxyType = "residential"
	ProxyResidentialFast    ProxyType = "residential_fast"
	ProxyResidentialStatic  ProxyType = "residential_static"
	ProxyResidentialPremium ProxyType = "residential_premium"
	ProxyResidentialCore    ProxyType = "residential_core"
	ProxyResidentialPlus    ProxyType = "residential_plus"
	ProxyMobile             ProxyType = "mobile"
	ProxyISP                ProxyType = "isp"
)

var proxyTypes = map[string]ProxyType{
	"residential":         ProxyResidential,
	"residential_fast":    ProxyResidentialFast,
	"residential_static":  ProxyResidentialStatic,
	"residential_premium": ProxyResidentialPremium,
	"residential_core":    ProxyResidentialCore,
	"residential_plus":    ProxyResidentialPlus,
	"mobile":              ProxyMobile,
	"isp":                 ProxyISP,
	"datacenter":          ProxyISP,
}

// ParseProxyType parses a wire name into a ProxyType.
func ParseProxyType(s string) (ProxyType, error) {
	p, ok := proxyTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown proxy type %q", s)
	}
	return p, nil
}

// String implements fmt.Stringer and pflag.Value.
func (p ProxyType) String() string {
	return string(p)
}

// Set implements pflag.Value.
func (p *ProxyType) Set(s string) error {
	parsed, err := ParseProxyType(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type implements pflag.Value.
func (p *ProxyType) Type() string {
	return "proxy"
}

// MarshalText implements encoding.TextMarshaler.
func (p ProxyType) MarshalText() ([]byte, error) {
	if _, ok := proxyTypes[string(p)]; !ok {
		return nil, fmt.Errorf("unknown proxy type %q", string(p))
	}
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ProxyType) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}
