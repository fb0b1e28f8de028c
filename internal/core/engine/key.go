package engine

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Route keys are case-insensitive and always normalized to lower case, the
// same form viper gives to map keys in the config file.

// ErrInvalidRouteKey is returned when a request does not carry both halves of
// a route key.
var ErrInvalidRouteKey = errors.New("invalid route key")

// KeyFromPath derives the route key from the first two non-empty segments of
// an escaped URL path. The key segments are unescaped; rest is the remaining
// internal path with a leading "/" (or "") and keeps its original escaping so
// it can be appended to a downstream URL as-is.
//
//	/v1/orders/created/today   -> key "v1/orders", rest "/created/today"
//	/v1/files/report%3Fdraft   -> key "v1/files",  rest "/report%3Fdraft"
func KeyFromPath(escapedPath string) (key string, rest string, err error) {
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(escapedPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", ErrInvalidRouteKey
	}
	version, err := url.PathUnescape(segments[0])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidRouteKey, err)
	}
	service, err := url.PathUnescape(segments[1])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidRouteKey, err)
	}
	key = strings.ToLower(version + "/" + service)
	if len(segments) > 2 {
		rest = "/" + strings.Join(segments[2:], "/")
	}
	return key, rest, nil
}

// KeyFromParts builds a route key from a version and service name.
func KeyFromParts(version, service string) (string, error) {
	version = strings.Trim(strings.TrimSpace(version), "/")
	service = strings.Trim(strings.TrimSpace(service), "/")
	if version == "" || service == "" {
		return "", ErrInvalidRouteKey
	}
	return strings.ToLower(version + "/" + service), nil
}

// EventName turns an escaped internal path into a bus message name:
// leading slash dropped, remaining slashes become dots, then unescaped.
//
//	/orders/created -> orders.created
func EventName(internalPath string) string {
	name := strings.ReplaceAll(strings.TrimPrefix(internalPath, "/"), "/", ".")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
