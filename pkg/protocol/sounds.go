package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// Sound bank defaults. The firmware addresses built-in clips by a
// fixed-width ASCII identifier; these were captured from the stock
// sound set and, like the opcode table, can be extended from
// configuration.
var (
	noiseMu    sync.RWMutex
	noiseTable = map[string][]byte{
		"hi":       []byte("SYST_HI___"),
		"bye":      []byte("SYST_BYE__"),
		"yes":      []byte("SYST_YES__"),
		"no":       []byte("SYST_NO___"),
		"laugh":    []byte("SYST_LAUGH"),
		"sigh":     []byte("SYST_SIGH_"),
		"yawn":     []byte("SYST_YAWN_"),
		"sneeze":   []byte("SYST_SNEEZ"),
		"gobble":   []byte("SYST_GOBBL"),
		"surprise": []byte("SYST_SURPR"),
		"ayyai":    []byte("SYST_AYYAI"),
		"horn":     []byte("SYST_HORN_"),
		"beep":     []byte("SYST_BEEP_"),
		"charge":   []byte("SYST_CHARG"),
		"tires":    []byte("SYST_TIRES"),
		"horse":    []byte("ANIM_HORSE"),
		"cat":      []byte("ANIM_CAT__"),
		"dog":      []byte("ANIM_DOG__"),
		"dino":     []byte("ANIM_DINO_"),
		"elephant": []byte("ANIM_ELEPH"),
		"lion":     []byte("ANIM_LION_"),
		"goat":     []byte("ANIM_GOAT_"),
		"croak":    []byte("ANIM_CROAK"),
		"crystal":  []byte("MUSC_CRYST"),
		"trumpet":  []byte("MUSC_TRUMP"),
	}
)

// RegisterNoise adds or overrides a sound bank entry.
func RegisterNoise(name string, clip []byte) error {
	if len(clip) == 0 || len(clip) > MaxPayload {
		return fmt.Errorf("noise %q: clip must be 1-%d bytes", name, MaxPayload)
	}
	noiseMu.Lock()
	noiseTable[name] = append([]byte(nil), clip...)
	noiseMu.Unlock()
	return nil
}

// LookupNoise resolves a sound name to its clip identifier.
func LookupNoise(name string) ([]byte, error) {
	noiseMu.RLock()
	clip, ok := noiseTable[name]
	noiseMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no sound bank entry for %q", name)
	}
	return append([]byte(nil), clip...), nil
}

// NoiseNames lists the sound bank in stable order.
func NoiseNames() []string {
	noiseMu.RLock()
	names := make([]string, 0, len(noiseTable))
	for name := range noiseTable {
		names = append(names, name)
	}
	noiseMu.RUnlock()
	sort.Strings(names)
	return names
}
