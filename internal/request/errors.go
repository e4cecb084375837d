package request

import "fmt"

// GrammarError reports a URI that does not match the request grammar:
// too many path segments, a descriptor with too many dotted components,
// an empty required component or an unparsable _limit.
type GrammarError struct {
	URI    string
	Detail string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("malformed request URI %q: %s", e.URI, e.Detail)
}

func grammarErrf(uri, format string, args ...any) error {
	return &GrammarError{URI: uri, Detail: fmt.Sprintf(format, args...)}
}
