package triage

import (
	"fmt"
	"strings"
)

const baseInstruction = `Eres el asistente de triaje médico de SUMA.
Ayudas a clasificar la urgencia del paciente y a decidir los siguientes pasos.
Responde siempre en español, con frases cortas que se puedan escuchar en voz alta.
Si detectas signos de riesgo vital, indícalo al inicio de la respuesta.
No sustituyes la valoración presencial de un profesional.`

// BuildSystemInstruction combines the fixed assistant rules, the role context
// and the intake form into the instruction sent when a consultation opens.
func BuildSystemInstruction(role RoleProfile, patient PatientData) string {
	var b strings.Builder
	b.WriteString(baseInstruction)
	b.WriteString("\n\n")
	b.WriteString(role.Context)
	b.WriteString("\n\nDatos del paciente:\n")
	fmt.Fprintf(&b, "- Nombre/ID: %s\n", strings.TrimSpace(patient.Name))
	fmt.Fprintf(&b, "- Edad: %s\n", strings.TrimSpace(patient.Age))
	fmt.Fprintf(&b, "- Sexo: %s\n", strings.TrimSpace(patient.Sex))
	fmt.Fprintf(&b, "- Medicamentos regulares/alergias: %s\n", strings.TrimSpace(patient.Medication))
	fmt.Fprintf(&b, "- Antecedentes: %s", strings.TrimSpace(patient.History))
	return b.String()
}
