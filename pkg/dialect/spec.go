package dialect

import (
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	goora "github.com/sijms/go-ora/v2"
)

// ConnectionSpec addresses one logical database target. It is built per
// request and never persisted.
type ConnectionSpec struct {
	Dialect  Tag
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Schema is optional; see Descriptor.ResolveSchema.
	Schema string
	// Params are extra connection parameters appended to the URI, limited
	// to Descriptor.Params.
	Params map[string]string
}

// Resolved returns a copy of spec with Schema set to its effective value and
// Port defaulted when zero. Parameters outside the dialect's allowlist are
// rejected.
func (s ConnectionSpec) Resolved() (ConnectionSpec, error) {
	d, err := Lookup(s.Dialect)
	if err != nil {
		return s, err
	}
	if err := d.CheckParams(s.Params); err != nil {
		return s, err
	}
	s.Schema = d.ResolveSchema(s)
	if s.Port == 0 {
		s.Port = d.DefaultPort
	}
	return s, nil
}

// Address returns host:port.
func (s ConnectionSpec) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (d Descriptor) uri(spec ConnectionSpec) *url.URL {
	u := &url.URL{
		Scheme: d.Scheme,
		User:   url.UserPassword(spec.Username, spec.Password),
		Host:   spec.Address(),
		Path:   "/" + spec.Database,
	}
	u.RawQuery = joinParams(d.URIParams, spec.Params)
	return u
}

// ConnectionString renders the canonical URI for spec. The username and
// password are percent-encoded.
func (d Descriptor) ConnectionString(spec ConnectionSpec) string {
	return d.uri(spec).String()
}

// RedactedConnectionString is ConnectionString with the password masked.
func (d Descriptor) RedactedConnectionString(spec ConnectionSpec) string {
	return d.uri(spec).Redacted()
}

// DSN renders the string handed to the database/sql driver.
func (d Descriptor) DSN(spec ConnectionSpec) string {
	switch d.Tag {
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = spec.Username
		cfg.Passwd = spec.Password
		cfg.Net = "tcp"
		cfg.Addr = spec.Address()
		cfg.DBName = spec.Database
		cfg.ParseTime = true
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		for k, v := range spec.Params {
			cfg.Params[k] = v
		}
		return cfg.FormatDSN()
	case SQLServer:
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(spec.Username, spec.Password),
			Host:   spec.Address(),
		}
		q := url.Values{}
		q.Set("database", spec.Database)
		for k, v := range spec.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String()
	case Oracle, DM:
		return goora.BuildUrl(spec.Host, spec.Port, spec.Database, spec.Username, spec.Password, spec.Params)
	case PostgreSQL, Kingbase:
		u := d.uri(spec)
		if _, ok := spec.Params["sslmode"]; !ok {
			u.RawQuery = joinParams("sslmode=disable", spec.Params)
		}
		return u.String()
	default:
		return d.ConnectionString(spec)
	}
}

// joinParams merges fixed params with user params in a deterministic order.
func joinParams(fixed string, extra map[string]string) string {
	if len(extra) == 0 {
		return fixed
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	if fixed != "" {
		parts = append(parts, fixed)
	}
	for _, k := range keys {
		if fixed != "" && strings.Contains("&"+fixed, "&"+k+"=") {
			continue
		}
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(extra[k]))
	}
	return strings.Join(parts, "&")
}
