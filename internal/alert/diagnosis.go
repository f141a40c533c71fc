package alert

import (
	"strings"
)

const genericDiagnosis = "Unknown issue: the site could not be reached or returned an unexpected response."

type errorRule struct {
	needles []string
	text    string
}

// Order matters: the first matching rule wins.
var errorRules = []errorRule{
	{[]string{"simulated"}, "Simulated failure: this alert was triggered by a test."},
	{[]string{"econnrefused", "connection refused"}, "Connection refused: the server is not accepting connections. The service may be stopped or a firewall is blocking the port."},
	{[]string{"enotfound", "no such host", "eai_again", "server misbehaving", "name resolution"}, "DNS failure: the domain name could not be resolved. Check the DNS records or domain registration."},
	{[]string{"certificate", "x509", "tls:", "ssl", "cert_"}, "TLS/SSL problem: the certificate is invalid, expired or does not match the domain."},
	{[]string{"etimedout", "timeout", "timed out", "deadline exceeded"}, "Timeout: the server took too long to respond. It may be overloaded or unreachable."},
	{[]string{"econnreset", "connection reset"}, "Connection reset: the server closed the connection unexpectedly."},
	{[]string{"socket hang up", "eof", "server closed"}, "Socket hang up: the connection was closed before a response was received."},
}

var codeDiagnosis = map[int]string{
	403: "403 Forbidden: the server refused the request. A firewall or bot protection may be blocking the monitor.",
	404: "404 Not Found: the monitored page does not exist. The URL may have changed.",
	500: "500 Internal Server Error: the application crashed while handling the request.",
	502: "502 Bad Gateway: a proxy received an invalid response from the upstream server.",
	503: "503 Service Unavailable: the server is overloaded or down for maintenance.",
	504: "504 Gateway Timeout: a proxy did not get a response from the upstream server in time.",
	520: "520 Unknown Error: the edge proxy received an empty or unexpected response from the origin.",
	521: "521 Web Server Is Down: the origin server refused connections from the edge proxy.",
	522: "522 Connection Timed Out: the edge proxy could not reach the origin server.",
	523: "523 Origin Is Unreachable: the edge proxy has no route to the origin server.",
	524: "524 A Timeout Occurred: the origin accepted the connection but did not respond in time.",
}

// Diagnose maps an error message and/or HTTP status code to a likely cause.
func Diagnose(errorMessage *string, statusCode *int) string {
	if errorMessage != nil {
		msg := strings.ToLower(*errorMessage)
		for _, r := range errorRules {
			for _, n := range r.needles {
				if strings.Contains(msg, n) {
					return r.text
				}
			}
		}
	}
	if statusCode != nil {
		code := *statusCode
		if text, ok := codeDiagnosis[code]; ok {
			return text
		}
		switch {
		case code >= 500:
			return "Server error: the site returned a 5xx response."
		case code >= 400:
			return "Client error: the site rejected the request with a 4xx response."
		}
	}
	return genericDiagnosis
}
