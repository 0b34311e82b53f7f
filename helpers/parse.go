package helpers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TopFilesTarget identifies the branch whose largest files are reported.
type TopFilesTarget struct {
	ProjectKey string
	Branch     string
	Limit      int
}

// ParseTopFilesTarget parses the "project,branch,limit" form of the
// -top-files flag. The limit may be omitted, leaving Limit at zero so the
// caller can substitute its configured default.
func ParseTopFilesTarget(s string) (target TopFilesTarget, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		err = fmt.Errorf(
			"invalid top-files target: %s\nExpected format: project,branch[,limit], e.g. open-source-stack,master,10",
			s,
		)
		return
	}

	target.ProjectKey = strings.TrimSpace(parts[0])
	target.Branch = strings.TrimSpace(parts[1])
	if target.ProjectKey == "" || target.Branch == "" {
		err = fmt.Errorf("invalid top-files target: %s\nProject and branch must not be empty", s)
		return
	}

	if len(parts) == 3 {
		target.Limit, err = strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || target.Limit <= 0 {
			err = fmt.Errorf("invalid top-files limit %q: must be a positive integer", parts[2])
			return
		}
	}

	return target, nil
}

// NormalizeServerURL validates the instance address and trims any trailing
// slash so endpoint paths can be appended directly.
func NormalizeServerURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %s", raw)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme in server URL: %s\nSupported: http, https", raw)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("server URL has no host: %s", raw)
	}

	return strings.TrimRight(parsed.String(), "/"), nil
}
