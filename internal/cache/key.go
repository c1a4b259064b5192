package cache

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	TTLNone   time.Duration = 0
	TTLShort                = time.Minute
	TTLMedium               = 10 * time.Minute
	TTLLong                 = time.Hour
	TTLStatic               = 24 * time.Hour
)

// BuildCacheKey renders params as prefix?k1=v1&k2=v2 with keys sorted. Nil
// values, empty strings and empty slices are dropped. Numeric zero is kept.
// Slices of strings and numbers are sorted before they are joined with ",".
func BuildCacheKey(prefix string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := formatValue(reflect.ValueOf(params[k]))
		if !ok {
			continue
		}
		pairs = append(pairs, k+"="+url.QueryEscape(v))
	}
	if len(pairs) == 0 {
		return prefix
	}
	return prefix + "?" + strings.Join(pairs, "&")
}

func formatValue(rv reflect.Value) (string, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Invalid:
		return "", false
	case reflect.String:
		s := rv.String()
		return s, s != ""
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.Slice, reflect.Array:
		return formatList(rv)
	}
	return fmt.Sprint(rv.Interface()), true
}

func formatList(rv reflect.Value) (string, bool) {
	if rv.Len() == 0 {
		return "", false
	}

	items := make([]reflect.Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items = append(items, rv.Index(i))
	}

	switch rv.Type().Elem().Kind() {
	case reflect.String:
		sort.SliceStable(items, func(i, j int) bool { return items[i].String() < items[j].String() })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Int() < items[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Uint() < items[j].Uint() })
	case reflect.Float32, reflect.Float64:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Float() < items[j].Float() })
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := formatValue(item); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ","), true
}
