// Package params defines the tunable vector handed to the player under test
// through param.json.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileName is the side-channel file the player reads its configuration from.
const FileName = "param.json"

// Bounds of every tunable field.
const (
	Min = 0
	Max = 1_000_000
)

// WeaknessLen is the number of per-card weakness weights.
const WeaknessLen = 10

var ErrOutOfRange = errors.New("parameter out of range")

// Config is the player's tunable configuration.
type Config struct {
	CardsNum int              `json:"cards_num"`
	Random   int              `json:"random"`
	Weakness [WeaknessLen]int `json:"weakness"`
}

// Suggester hands out integer suggestions, one per named parameter.
type Suggester interface {
	SuggestInt(name string, low, high int) (int, error)
}

// Names lists the parameter names in suggestion order:
// cards_num, random, w0..w9.
func Names() []string {
	names := []string{"cards_num", "random"}
	for i := 0; i < WeaknessLen; i++ {
		names = append(names, WeightName(i))
	}
	return names
}

// WeightName is the suggestion name of weakness[i].
func WeightName(i int) string { return "w" + strconv.Itoa(i) }

// Sample draws every field independently from [Min, Max].
func Sample(s Suggester) (Config, error) {
	var c Config
	var err error
	if c.CardsNum, err = s.SuggestInt("cards_num", Min, Max); err != nil {
		return Config{}, err
	}
	if c.Random, err = s.SuggestInt("random", Min, Max); err != nil {
		return Config{}, err
	}
	for i := range c.Weakness {
		if c.Weakness[i], err = s.SuggestInt(WeightName(i), Min, Max); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// Validate checks every field is inside [Min, Max].
func (c Config) Validate() error {
	check := func(name string, v int) error {
		if v < Min || v > Max {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, name, v)
		}
		return nil
	}
	if err := check("cards_num", c.CardsNum); err != nil {
		return err
	}
	if err := check("random", c.Random); err != nil {
		return err
	}
	for i, w := range c.Weakness {
		if err := check(WeightName(i), w); err != nil {
			return err
		}
	}
	return nil
}

// Map flattens the config to name -> value, the shape trials are stored in.
func (c Config) Map() map[string]int {
	m := map[string]int{"cards_num": c.CardsNum, "random": c.Random}
	for i, w := range c.Weakness {
		m[WeightName(i)] = w
	}
	return m
}

// FromMap rebuilds a config from Map's output.
func FromMap(m map[string]int) (Config, error) {
	var c Config
	var ok bool
	if c.CardsNum, ok = m["cards_num"]; !ok {
		return Config{}, fmt.Errorf("missing cards_num")
	}
	if c.Random, ok = m["random"]; !ok {
		return Config{}, fmt.Errorf("missing random")
	}
	for i := range c.Weakness {
		if c.Weakness[i], ok = m[WeightName(i)]; !ok {
			return Config{}, fmt.Errorf("missing %s", WeightName(i))
		}
	}
	return c, c.Validate()
}

// WriteFile writes the config as param.json inside dir.
func (c Config) WriteFile(dir string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write params: %w", err)
	}
	return path, nil
}

// ReadFile loads param.json from dir.
func ReadFile(dir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode params: %w", err)
	}
	return c, c.Validate()
}
