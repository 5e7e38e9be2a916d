package service

import (
	"net/url"
	"strings"
)

// returnEscaper keeps service URLs readable in the UI fragment while escaping
// the characters that would split or truncate the parameter.
var returnEscaper = strings.NewReplacer(
	"%", "%25",
	"&", "%26",
	"#", "%23",
	"+", "%2B",
	" ", "%20",
)

func (s *Service) loginPage(serviceURL string) string {
	return s.systemDomain + "/#/cas/login?service=" + returnEscaper.Replace(serviceURL)
}

func (s *Service) errorPage(serviceURL, code string) string {
	return s.systemDomain + "/#/cas/error?service=" + returnEscaper.Replace(serviceURL) + "&code=" + code
}

func (s *Service) forwardLoginPage(target string) string {
	return s.systemDomain + "/#/login?service=" + returnEscaper.Replace(target)
}

func (s *Service) home() string {
	return s.systemDomain + "/"
}

// withTicket appends the ticket parameter, keeping any existing query and fragment.
func withTicket(serviceURL, token string) string {
	base, fragment, hasFragment := strings.Cut(serviceURL, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	out := base + sep + "ticket=" + url.QueryEscape(token)
	if hasFragment {
		out += "#" + fragment
	}
	return out
}
