package directory

import "strings"

// ReferenceAddressAttribute is the multi-valued attribute carrying encoded
// connection parameters on tenant entries.
const ReferenceAddressAttribute = "javaReferenceAddress"

// DecodeReferenceAddress decodes encoded address lines into parameter
// name/value pairs. Each line holds positional fields separated by '#'
// (or '|' in older entries): field 2 is the parameter name, field 3 its
// value. Unparseable lines are skipped; later lines win on duplicates.
func DecodeReferenceAddress(lines []string) map[string]string {
	params := make(map[string]string, len(lines))
	for _, line := range lines {
		sep := "#"
		if !strings.Contains(line, sep) {
			sep = "|"
		}
		fields := strings.Split(line, sep)
		if len(fields) < 4 {
			continue
		}
		name := strings.TrimSpace(fields[2])
		if name == "" {
			continue
		}
		params[name] = fields[3]
	}
	return params
}
