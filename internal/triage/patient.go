package triage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrIncompletePatient = errors.New("patient data is incomplete")

type PatientData struct {
	Name       string `json:"name"`
	Age        string `json:"age"`
	Sex        string `json:"sex"`
	Medication string `json:"medication"`
	History    string `json:"history"`
}

// Validate requires every field to be filled, mirroring the intake form.
func (p PatientData) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"age", p.Age},
		{"sex", p.Sex},
		{"medication", p.Medication},
		{"history", p.History},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrIncompletePatient, f.name)
		}
	}
	age, err := strconv.Atoi(strings.TrimSpace(p.Age))
	if err != nil || age < 0 || age > 150 {
		return fmt.Errorf("%w: age must be a whole number between 0 and 150", ErrIncompletePatient)
	}
	return nil
}
