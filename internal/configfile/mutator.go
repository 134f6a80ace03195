package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigParse indicates a structured config could not be parsed.
	ErrConfigParse = errors.New("config parse error")
	// ErrConfigWrite indicates the mutated config could not be written.
	ErrConfigWrite = errors.New("config write error")
)

// SetFields replaces the value of every field in fields with port, using the
// strategy for the given format. The write is all-or-nothing: content is
// serialized to a temp file in the same directory and renamed over the
// original, so a failure partway leaves the file untouched.
func SetFields(path string, format Format, fields []string, port int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	var mutated []byte
	switch format {
	case FormatJSON:
		mutated, err = setJSONFields(data, fields, port)
	case FormatYAML:
		mutated, err = setYAMLFields(data, fields, port)
	case FormatTOML:
		mutated, err = setLineFields(data, fields, port)
	default:
		return fmt.Errorf("unsupported config format: %q", format)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return writeAtomic(path, mutated)
}

// SetPortFields is SetFields with the default port-bearing field set.
func SetPortFields(path string, format Format, port int) error {
	return SetFields(path, format, DefaultPortFields, port)
}

func setJSONFields(data []byte, fields []string, port int) ([]byte, error) {
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	replaceInTree(tree, fieldSet(fields), port)

	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return append(out, '\n'), nil
}

func setYAMLFields(data []byte, fields []string, port int) ([]byte, error) {
	var tree interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty document", ErrConfigParse)
	}

	replaceInTree(tree, fieldSet(fields), port)

	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return out, nil
}

// replaceInTree walks a generic decoded tree and replaces numeric values
// under matching keys at any depth. Non-numeric values are left alone so a
// field like `port: "auto"` never turns into an integer silently.
func replaceInTree(node interface{}, fields map[string]struct{}, port int) {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, value := range v {
			if _, ok := fields[key]; ok && isNumber(value) {
				v[key] = port
				continue
			}
			replaceInTree(value, fields, port)
		}
	case []interface{}:
		for _, item := range v {
			replaceInTree(item, fields, port)
		}
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int64, uint64, float64:
		return true
	}
	return false
}

// setLineFields rewrites `field = number` assignments line by line. The rest
// of each line, including trailing comments, and every non-matching line are
// preserved byte-for-byte. Structural parsing is deliberately avoided here:
// reserializing TOML reformats the file and loses comments.
func setLineFields(data []byte, fields []string, port int) ([]byte, error) {
	pattern, err := lineFieldPattern(fields)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if m := pattern.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + m[2] + m[3] + strconv.Itoa(port) + m[4]
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func lineFieldPattern(fields []string) (*regexp.Regexp, error) {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.Compile(`^(\s*)(` + strings.Join(quoted, "|") + `)(\s*=\s*)(?:\d+)(.*)$`)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}

	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmpName, info.Mode())
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return nil
}

func fieldSet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
