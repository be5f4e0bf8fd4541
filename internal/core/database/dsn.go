package database

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// JDBC 参数 -> go-sql-driver 参数
var jdbcRenames = map[string]string{
	"serverTimezone":    "loc",
	"characterEncoding": "charset",
}

// go-sql-driver 不认识的 JDBC 参数
var jdbcDropped = []string{"useUnicode", "zeroDateTimeBehavior", "autoReconnect"}

// normalizeMySQLDSN 接受原生 DSN（user:pass@tcp(host)/db）或 mysql:// / jdbc:mysql:// URL，
// 统一转成 go-sql-driver 格式。userOverride/passOverride 只作用于 URL 形式。
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return in
	}
	u, err := url.Parse(in)
	if err != nil {
		return in
	}

	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	q := u.Query()
	user = firstNonEmpty(userOverride, q.Get("user"), user)
	pass = firstNonEmpty(passOverride, q.Get("password"), pass)
	q.Del("user")
	q.Del("password")

	for from, to := range jdbcRenames {
		if v := q.Get(from); v != "" && q.Get(to) == "" {
			q.Set(to, v)
		}
		q.Del(from)
	}
	for _, k := range jdbcDropped {
		q.Del(k)
	}
	if v := strings.ToLower(q.Get("useSSL")); v != "" {
		switch v {
		case "true", "1":
			q.Set("tls", "true")
		case "skip-verify", "preferred":
			q.Set("tls", v)
		default:
			q.Set("tls", "false")
		}
		q.Del("useSSL")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	nativePass = regexp.MustCompile(`^([^:@/]+):[^@]*@`)
	kvPass     = regexp.MustCompile(`(?i)(password=)\S+`)
	urlPass    = regexp.MustCompile(`(://[^:/@]+):[^@]*@`)
)

// maskDSN 日志用：隐藏密码
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		dsn = urlPass.ReplaceAllString(dsn, "$1:****@")
	} else {
		dsn = nativePass.ReplaceAllString(dsn, "$1:****@")
	}
	return kvPass.ReplaceAllString(dsn, "${1}****")
}
