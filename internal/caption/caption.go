package caption

import (
	"regexp"
	"strconv"
	"strings"
)

const directivePrefix = "regex:"

// Separator joins the template expansion and the per-job override.
const Separator = "\n\n"

// Report describes how a template was expanded.
type Report struct {
	// Directive is true when the first line carried a regex directive.
	Directive bool
	// Matched is true when the directive pattern matched the file name.
	Matched bool
	// CompileErr holds the pattern compile failure, if any. Expansion
	// continues with the unchanged skeleton.
	CompileErr error
}

// Expand renders template against filename. A blank template yields "". When
// the first line is a "regex:" directive, the rest of that line is compiled
// and matched against filename and the remaining lines form a skeleton whose
// \1, \2 ... placeholders are replaced with the corresponding capture groups.
// A pattern that fails to compile or does not match leaves the skeleton as is.
// Any other template is returned verbatim.
func Expand(filename, template string) string {
	out, _ := ExpandWithReport(filename, template)
	return out
}

// ExpandWithReport is Expand plus details about how the directive behaved.
func ExpandWithReport(filename, template string) (string, Report) {
	var report Report
	if strings.TrimSpace(template) == "" {
		return "", report
	}

	firstLine, rest, hasRest := strings.Cut(template, "\n")
	trimmed := strings.TrimSpace(firstLine)
	if !strings.HasPrefix(strings.ToLower(trimmed), directivePrefix) {
		return template, report
	}
	report.Directive = true

	_, pattern, _ := strings.Cut(trimmed, ":")
	pattern = strings.TrimSpace(pattern)
	skeleton := ""
	if hasRest {
		skeleton = rest
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		report.CompileErr = err
		return skeleton, report
	}
	groups := re.FindStringSubmatch(filename)
	if groups == nil {
		return skeleton, report
	}
	report.Matched = true

	return substitute(skeleton, groups), report
}

// substitute replaces \N placeholders in one pass over skeleton. The longest
// digit run naming an existing group wins, so \10 beats \1 when ten groups
// exist. Inserted capture text is never scanned again.
func substitute(skeleton string, groups []string) string {
	var b strings.Builder
	b.Grow(len(skeleton))
	for i := 0; i < len(skeleton); i++ {
		if skeleton[i] != '\\' {
			b.WriteByte(skeleton[i])
			continue
		}
		end := i + 1
		for end < len(skeleton) && skeleton[end] >= '0' && skeleton[end] <= '9' {
			end++
		}
		index, width := groupIndex(skeleton[i+1:end], len(groups))
		if width == 0 {
			b.WriteByte('\\')
			continue
		}
		b.WriteString(groups[index])
		i += width
	}
	return b.String()
}

// groupIndex returns the longest prefix of digits that names a capture group
// and its length, or zero width when none does.
func groupIndex(digits string, count int) (int, int) {
	if digits == "" || digits[0] == '0' {
		return 0, 0
	}
	for width := len(digits); width > 0; width-- {
		n, err := strconv.Atoi(digits[:width])
		if err == nil && n >= 1 && n < count {
			return n, width
		}
	}
	return 0, 0
}

// Combine joins an expanded template and a per-job override. When both are
// non-empty they are separated by a blank line; otherwise whichever is
// non-empty is returned.
func Combine(expansion, override string) string {
	switch {
	case expansion != "" && override != "":
		return expansion + Separator + override
	case expansion != "":
		return expansion
	default:
		return override
	}
}

// Compose produces the effective caption for a job.
func Compose(filename, template, override string) string {
	return Combine(Expand(filename, template), override)
}
