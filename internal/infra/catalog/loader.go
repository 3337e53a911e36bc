package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mcpchat/internal/domain"
)

type IssueKind string

const (
	IssueInvalid    IssueKind = "invalid"
	IssueMissingEnv IssueKind = "missing_env"
	IssueDuplicate  IssueKind = "duplicate"
)

// Issue is a per-provider problem found while loading. The provider it
// names is skipped unless the kind is IssueMissingEnv.
type Issue struct {
	Name    string
	Kind    IssueKind
	Message string
}

// Result is a loaded provider config. Providers keep file order, or name
// order for TOML.
type Result struct {
	Path      string
	Providers []domain.ProviderSpec
	Issues    []Issue
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("catalog")}
}

// Load reads the provider config at path. A missing or malformed file is a
// ConfigLoad error; malformed entries only produce issues.
func (l *Loader) Load(path string) (Result, error) {
	const op = "catalog.Load"
	if strings.TrimSpace(path) == "" {
		return Result{}, domain.E(domain.KindConfigLoad, op, "config path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, domain.E(domain.KindConfigLoad, op, fmt.Sprintf("read %s: %v", path, err), err)
	}

	var result Result
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		result, err = parseTOML(data)
	} else {
		result, err = parseDocument(data)
	}
	if err != nil {
		return Result{}, domain.E(domain.KindConfigLoad, op, fmt.Sprintf("parse %s: %v", path, err), err)
	}
	result.Path = path

	for _, issue := range result.Issues {
		l.logger.Warn("provider config issue",
			zap.String("path", path),
			zap.String("provider", issue.Name),
			zap.String("kind", string(issue.Kind)),
			zap.String("message", issue.Message),
		)
	}
	return result, nil
}

// parseDocument reads the JSON or YAML layout {"mcpServers": {name: {...}}}
// through yaml nodes so that provider order survives.
func parseDocument(data []byte) (Result, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		// JSON never holds raw tabs inside strings, and yaml rejects them
		// as indentation.
		data = bytes.ReplaceAll(data, []byte("\t"), []byte(" "))
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Result{}, err
	}
	var result Result
	if root.Kind == 0 {
		return result, nil
	}
	for _, name := range expandEnv(&root) {
		result.Issues = append(result.Issues, Issue{
			Kind:    IssueMissingEnv,
			Message: fmt.Sprintf("environment variable %s is not set", name),
		})
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return Result{}, errors.New("top level must be an object")
	}
	servers := mappingValue(doc, domain.DefaultServersKey)
	if servers == nil {
		return result, nil
	}
	if servers.Kind != yaml.MappingNode {
		return Result{}, fmt.Errorf("%s must be an object", domain.DefaultServersKey)
	}

	seen := make(map[string]struct{})
	for i := 0; i+1 < len(servers.Content); i += 2 {
		name := servers.Content[i].Value
		var entry map[string]any
		if err := servers.Content[i+1].Decode(&entry); err != nil || entry == nil {
			result.Issues = append(result.Issues, Issue{Name: name, Kind: IssueInvalid, Message: "entry must be an object"})
			continue
		}
		result.addEntry(name, entry, seen)
	}
	return result, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// parseTOML reads the Codex layout [mcp_servers.<name>].
func parseTOML(data []byte) (Result, error) {
	var payload map[string]any
	if err := toml.Unmarshal(data, &payload); err != nil {
		return Result{}, err
	}
	var result Result
	servers, _ := payload[domain.DefaultTOMLServersKey].(map[string]any)

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]struct{})
	missing := make(map[string]struct{})
	for _, name := range names {
		entry, ok := servers[name].(map[string]any)
		if !ok {
			result.Issues = append(result.Issues, Issue{Name: name, Kind: IssueInvalid, Message: "entry must be an object"})
			continue
		}
		for key, value := range entry {
			if s, ok := value.(string); ok {
				entry[key] = expandString(s, missing)
			}
		}
		result.addEntry(name, entry, seen)
	}
	for _, key := range missingList(missing) {
		result.Issues = append(result.Issues, Issue{
			Kind:    IssueMissingEnv,
			Message: fmt.Sprintf("environment variable %s is not set", key),
		})
	}
	return result, nil
}

func (r *Result) addEntry(name string, entry map[string]any, seen map[string]struct{}) {
	spec, issue, ok := parseProviderSpec(name, entry)
	if !ok {
		r.Issues = append(r.Issues, *issue)
		return
	}
	if _, dup := seen[spec.Name]; dup {
		r.Issues = append(r.Issues, Issue{Name: spec.Name, Kind: IssueDuplicate, Message: "provider defined more than once"})
		return
	}
	seen[spec.Name] = struct{}{}
	r.Providers = append(r.Providers, spec)
}

func parseProviderSpec(name string, entry map[string]any) (domain.ProviderSpec, *Issue, bool) {
	name = strings.TrimSpace(name)
	invalid := func(msg string) (domain.ProviderSpec, *Issue, bool) {
		return domain.ProviderSpec{}, &Issue{Name: name, Kind: IssueInvalid, Message: msg}, false
	}
	if name == "" {
		return invalid("provider name is required")
	}

	url, ok := readOptionalString(entry, "url")
	if !ok {
		return invalid("url must be a string")
	}
	if url == "" {
		if url, ok = readOptionalString(entry, "endpoint"); !ok {
			return invalid("endpoint must be a string")
		}
	}
	transportRaw, ok := readOptionalString(entry, "transport")
	if !ok {
		return invalid("transport must be a string")
	}
	if transportRaw == "" {
		if transportRaw, ok = readOptionalString(entry, "type"); !ok {
			return invalid("type must be a string")
		}
	}
	transport, ok := normalizeTransport(transportRaw, url != "")
	if !ok {
		return invalid("unsupported transport type " + transportRaw)
	}
	disabled, ok := readOptionalBool(entry, "disabled")
	if !ok {
		return invalid("disabled must be a boolean")
	}
	if enabled, present := entry["enabled"]; present {
		b, isBool := enabled.(bool)
		if !isBool {
			return invalid("enabled must be a boolean")
		}
		disabled = disabled || !b
	}

	spec := domain.ProviderSpec{
		Name:      name,
		Transport: transport,
		Disabled:  disabled,
	}
	switch transport {
	case domain.TransportStdio:
		command, ok := readOptionalString(entry, "command")
		if !ok || strings.TrimSpace(command) == "" {
			return invalid("command is required for stdio transport")
		}
		args, ok := readOptionalStringSlice(entry, "args")
		if !ok {
			return invalid("args must be an array of strings")
		}
		env, ok := readOptionalStringMap(entry, "env")
		if !ok {
			return invalid("env must be a map of strings")
		}
		cwd, ok := readOptionalString(entry, "cwd")
		if !ok {
			return invalid("cwd must be a string")
		}
		spec.Command = command
		spec.Args = args
		spec.Env = env
		spec.Cwd = cwd
	case domain.TransportHTTP:
		if url == "" {
			return invalid("url is required for http transport")
		}
		headers, ok := readOptionalStringMap(entry, "headers")
		if !ok {
			return invalid("headers must be a map of strings")
		}
		spec.URL = url
		spec.Headers = headers
	}
	return spec, nil, true
}

func normalizeTransport(raw string, hasURL bool) (domain.TransportKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if hasURL {
			return domain.TransportHTTP, true
		}
		return domain.TransportStdio, true
	case "stdio":
		return domain.TransportStdio, true
	case "http", "streamable_http", "streamable-http", "streamablehttp":
		return domain.TransportHTTP, true
	default:
		return "", false
	}
}

func readOptionalString(entry map[string]any, key string) (string, bool) {
	value, ok := entry[key]
	if !ok || value == nil {
		return "", true
	}
	s, ok := value.(string)
	return s, ok
}

func readOptionalBool(entry map[string]any, key string) (bool, bool) {
	value, ok := entry[key]
	if !ok || value == nil {
		return false, true
	}
	b, ok := value.(bool)
	return b, ok
}

func readOptionalStringSlice(entry map[string]any, key string) ([]string, bool) {
	value, ok := entry[key]
	if !ok || value == nil {
		return nil, true
	}
	switch raw := value.(type) {
	case []string:
		return append([]string(nil), raw...), true
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case int, int64, float64, bool:
				out = append(out, scalarString(v))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func scalarString(v any) string {
	if f, ok := v.(float64); ok && math.Trunc(f) == f {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

func readOptionalStringMap(entry map[string]any, key string) (map[string]string, bool) {
	value, ok := entry[key]
	if !ok || value == nil {
		return nil, true
	}
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch s := v.(type) {
		case string:
			out[k] = s
		case int, int64, float64, bool:
			out[k] = scalarString(s)
		default:
			return nil, false
		}
	}
	return out, true
}
