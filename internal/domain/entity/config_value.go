package entity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Claves de configuración usadas por el núcleo del kiosco.
const (
	ConfigKeyTrackingEnabled = "inventory_tracking_enabled"
	ConfigKeyRecipients      = "notification_recipients"
	ConfigKeyOperatingHours  = "operating_hours"
	ConfigKeyMaintenanceMode = "maintenance_mode"
)

// ConfigKind discrimina las variantes de ConfigValue.
type ConfigKind int

const (
	ConfigKindString ConfigKind = iota
	ConfigKindBool
	ConfigKindArray
	ConfigKindObject
)

// ConfigValue es el valor tipado de una clave de configuración. La columna
// guarda JSON libre (bool, string, array u objeto); se decodifica una sola
// vez en la frontera de persistencia a esta unión etiquetada.
type ConfigValue struct {
	Kind   ConfigKind
	Bool   bool
	Str    string
	Array  []string
	Object json.RawMessage
}

// DecodeConfigValue interpreta el JSON crudo de la columna value.
// Valores no parseables se tratan como string plano (parsing defensivo).
func DecodeConfigValue(raw []byte) ConfigValue {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ConfigValue{Kind: ConfigKindString, Str: ""}
	}
	switch trimmed[0] {
	case '{':
		return ConfigValue{Kind: ConfigKindObject, Object: json.RawMessage(trimmed)}
	case '[':
		var arr []string
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return ConfigValue{Kind: ConfigKindArray, Array: arr}
		}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal([]byte(trimmed), &b); err == nil {
			return ConfigValue{Kind: ConfigKindBool, Bool: b}
		}
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return ConfigValue{Kind: ConfigKindString, Str: s}
		}
	}
	return ConfigValue{Kind: ConfigKindString, Str: trimmed}
}

// AsBool interpreta el valor como booleano. Strings "true"/"1" cuentan como
// true; cualquier otra cosa devuelve def.
func (v ConfigValue) AsBool(def bool) bool {
	switch v.Kind {
	case ConfigKindBool:
		return v.Bool
	case ConfigKindString:
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Str)); err == nil {
			return b
		}
	}
	return def
}

// AsStringList interpreta el valor como lista: array JSON o string separado
// por comas. Entradas vacías se descartan.
func (v ConfigValue) AsStringList() []string {
	var items []string
	switch v.Kind {
	case ConfigKindArray:
		items = v.Array
	case ConfigKindString:
		items = strings.Split(v.Str, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

// AsObject decodifica la variante Object en dst. Devuelve false si el valor
// no es un objeto o el JSON no matchea.
func (v ConfigValue) AsObject(dst any) bool {
	if v.Kind != ConfigKindObject {
		return false
	}
	return json.Unmarshal(v.Object, dst) == nil
}

// NewBoolValue construye la variante Bool (para escrituras).
func NewBoolValue(b bool) ConfigValue { return ConfigValue{Kind: ConfigKindBool, Bool: b} }

// NewStringValue construye la variante String.
func NewStringValue(s string) ConfigValue { return ConfigValue{Kind: ConfigKindString, Str: s} }

// NewArrayValue construye la variante Array.
func NewArrayValue(items []string) ConfigValue {
	return ConfigValue{Kind: ConfigKindArray, Array: items}
}

// NewObjectValue serializa obj como variante Object.
func NewObjectValue(obj any) (ConfigValue, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return ConfigValue{}, err
	}
	return ConfigValue{Kind: ConfigKindObject, Object: raw}, nil
}

// MarshalJSON serializa el valor para persistirlo en la columna JSONB.
func (v ConfigValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ConfigKindBool:
		return json.Marshal(v.Bool)
	case ConfigKindArray:
		return json.Marshal(v.Array)
	case ConfigKindObject:
		return []byte(v.Object), nil
	default:
		return json.Marshal(v.Str)
	}
}
