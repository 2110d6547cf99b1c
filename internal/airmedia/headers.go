package airmedia

import (
	"net/http"
)

const loginURI = "userlogin.html"

// The login page refuses requests that do not look like they come from the
// device's own web UI.
var loginBrowserHeaders = [][2]string{
	{"Connection", "keep-alive"},
	{"sec-ch-ua", `" Not;A Brand";v="99", "Google Chrome";v="91", "Chromium";v="91"`},
	{"Accept", "*/*"},
	{"X-Requested-With", "XMLHttpRequest"},
	{"sec-ch-ua-mobile", "?0"},
	{"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"},
	{"Sec-Fetch-Site", "same-origin"},
	{"Sec-Fetch-Mode", "cors"},
	{"Sec-Fetch-Dest", "empty"},
}

// RequestHeaders returns the headers to send for method and uri on a device
// reachable at host. Only the login page gets extra headers; base is never
// modified.
func RequestHeaders(host, method, uri string, base http.Header) http.Header {
	if uri != loginURI {
		return base
	}

	headers := base.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Add("Host", host)
	for _, h := range loginBrowserHeaders {
		headers.Add(h[0], h[1])
	}
	headers.Add("Origin", "https://"+host)
	headers.Add("Referer", "https://"+host+"/"+loginURI)
	return headers
}
