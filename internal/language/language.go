// Package language lists the languages the tutor can teach and speak.
package language

import (
	"errors"
	"fmt"
)

// Language is a supported conversation language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Supported is the selectable language list, in display order.
var Supported = []Language{
	{Code: "en-US", Name: "English (US)"},
	{Code: "es-ES", Name: "Spanish"},
	{Code: "fr-FR", Name: "French"},
	{Code: "de-DE", Name: "German"},
	{Code: "it-IT", Name: "Italian"},
	{Code: "ja-JP", Name: "Japanese"},
	{Code: "ko-KR", Name: "Korean"},
	{Code: "pt-BR", Name: "Portuguese"},
	{Code: "ru-RU", Name: "Russian"},
	{Code: "zh-CN", Name: "Chinese (Mandarin)"},
	{Code: "ar-SA", Name: "Arabic"},
	{Code: "hi-IN", Name: "Hindi"},
	{Code: "ur-PK", Name: "Urdu"},
}

// Defaults used when nothing is configured.
const (
	DefaultNative = "en-US"
	DefaultTarget = "es-ES"
)

// ErrSameLanguage is returned when native and target languages are equal.
var ErrSameLanguage = errors.New("Please select two different languages.")

// Lookup finds a language by code.
func Lookup(code string) (Language, bool) {
	for _, l := range Supported {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Pair resolves and checks a native/target selection.
func Pair(native, target string) (Language, Language, error) {
	n, ok := Lookup(native)
	if !ok {
		return Language{}, Language{}, fmt.Errorf("unsupported native language %q", native)
	}
	t, ok := Lookup(target)
	if !ok {
		return Language{}, Language{}, fmt.Errorf("unsupported target language %q", target)
	}
	if n.Code == t.Code {
		return Language{}, Language{}, ErrSameLanguage
	}
	return n, t, nil
}
