package alert

// Normalize fills the defaults collectors routinely omit and coerces field
// types to the shapes the input schema expects. It mutates the record in
// place and returns it for chaining. Applying it twice is a no-op.
func Normalize(r Record) Record {
	fillDefaults(r)
	coerceTypes(r)
	return r
}

var predecoderDefaults = map[string]any{
	"program_name": "",
	"timestamp":    "",
	"hostname":     "",
}

var decoderDefaults = map[string]any{
	"name":       "",
	"parent":     "",
	"ftscomment": "",
}

func fillDefaults(r Record) {
	if _, ok := r["full_log"]; !ok {
		r["full_log"] = ""
	}

	// predecoder must exist as an object with its base fields
	pre, ok := r["predecoder"].(map[string]any)
	if !ok {
		pre = map[string]any{}
		r["predecoder"] = pre
	}
	setMissing(pre, predecoderDefaults)

	dec, ok := r["decoder"].(map[string]any)
	if !ok {
		dec = map[string]any{}
		r["decoder"] = dec
	}
	setMissing(dec, decoderDefaults)

	// rule defaults only apply when a rule object is present at all
	if rule, ok := r["rule"].(map[string]any); ok {
		if _, ok := rule["gpg13"]; !ok {
			rule["gpg13"] = []any{}
		}
		if _, ok := rule["hipaa"]; !ok {
			rule["hipaa"] = []any{}
		}
		if _, ok := rule["mitre"]; !ok {
			rule["mitre"] = map[string]any{"id": []any{}, "technique": []any{}}
		}
	}
}

func setMissing(m map[string]any, defaults map[string]any) {
	for k, v := range defaults {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
}

// coerceKind selects how a field value is rewritten.
type coerceKind int

const (
	// asStr stringifies the value when present and non-nil.
	asStr coerceKind = iota
	// asStrAlways stringifies the value even when absent (absent becomes "").
	asStrAlways
	// asIntField coerces to int, falling back to 0 on garbage.
	asIntField
	// asStrList turns nil into [], scalars into a one-element string list,
	// and leaves lists alone.
	asStrList
)

// coercions is the full type-coercion table. Section "" is the top level;
// other sections name a nested object and are skipped when that object is
// absent or not a map.
var coercions = []struct {
	section string
	field   string
	kind    coerceKind
}{
	{"", "timestamp", asStrAlways},
	{"", "id", asStrAlways},
	{"", "full_log", asStr},
	{"", "location", asStr},

	{"rule", "level", asIntField},
	{"rule", "firedtimes", asIntField},
	{"rule", "description", asStr},
	{"rule", "id", asStr},
	{"rule", "mail", asStr},
	{"rule", "groups", asStrList},
	{"rule", "pci_dss", asStrList},
	{"rule", "gpg13", asStrList},
	{"rule", "gdpr", asStrList},
	{"rule", "hipaa", asStrList},
	{"rule", "nist_800_53", asStrList},
	{"rule", "tsc", asStrList},

	{"rule.mitre", "id", asStrList},
	{"rule.mitre", "technique", asStrList},

	{"agent", "id", asStr},
	{"agent", "name", asStr},
	{"manager", "name", asStr},

	{"decoder", "name", asStr},
	{"decoder", "parent", asStr},
	{"decoder", "ftscomment", asStr},

	{"predecoder", "program_name", asStr},
	{"predecoder", "timestamp", asStr},
	{"predecoder", "hostname", asStr},
}

func coerceTypes(r Record) {
	// mitre needs its shape repaired before the table runs over it
	if rule, ok := r["rule"].(map[string]any); ok {
		if _, ok := rule["mitre"].(map[string]any); !ok {
			rule["mitre"] = map[string]any{"id": []any{}, "technique": []any{}}
		}
	}

	for _, c := range coercions {
		m := section(r, c.section)
		if m == nil {
			continue
		}
		applyCoercion(m, c.field, c.kind)
	}
}

func section(r Record, name string) map[string]any {
	switch name {
	case "":
		return r
	case "rule.mitre":
		rule, ok := r["rule"].(map[string]any)
		if !ok {
			return nil
		}
		m, _ := rule["mitre"].(map[string]any)
		return m
	default:
		m, _ := r[name].(map[string]any)
		return m
	}
}

func applyCoercion(m map[string]any, field string, kind coerceKind) {
	v, present := m[field]

	switch kind {
	case asStrAlways:
		m[field] = asString(v)
	case asStr:
		if present && v != nil {
			m[field] = asString(v)
		}
	case asIntField:
		if present && v != nil {
			m[field] = asInt(v)
		}
	case asStrList:
		if !present {
			return
		}
		switch t := v.(type) {
		case nil:
			m[field] = []any{}
		case []any:
			// already a list
		default:
			m[field] = []any{asString(t)}
		}
	}
}
