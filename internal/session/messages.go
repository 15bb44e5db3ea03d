package session

import "fmt"

const (
	StopReasonClientRequest = "client_request"
	StopReasonClientGone    = "client_disconnected"
	StopReasonMaxDuration   = "max_duration"
	StopReasonModelError    = "model_error"
	StopReasonServerClosed  = "server_closed"
	stopReasonStartFailed   = "start_failed"
	stopReasonOrphaned      = "orphaned"
)

const (
	messageWelcomeFormat = "Conectado con SUMA. Describe la situación de %s para comenzar el triaje."
	messageReportTitle   = ":page_facing_up: **Reporte de consulta de triaje**"
	messageReportLine    = "Consulta `%s` de %s (%s)."

	senderLabelUser = "Usuario"
	senderLabelBot  = "SUMA"
)

func welcomeMessage(patientName string) string {
	return fmt.Sprintf(messageWelcomeFormat, patientName)
}

func stopReasonDetail(reason string) string {
	switch reason {
	case StopReasonClientRequest:
		return "El usuario finalizó la consulta."
	case StopReasonClientGone:
		return "Se perdió la conexión con el dispositivo."
	case StopReasonMaxDuration:
		return "Se alcanzó la duración máxima de la consulta."
	case StopReasonModelError:
		return "Se perdió la conexión con el asistente."
	case StopReasonServerClosed:
		return "El servidor se detuvo."
	case stopReasonStartFailed:
		return "No fue posible iniciar la consulta."
	case stopReasonOrphaned:
		return "La consulta quedó abierta tras un reinicio del servidor."
	default:
		return "Ocurrió un error desconocido."
	}
}

func senderLabel(sender string) string {
	if sender == "bot" {
		return senderLabelBot
	}
	return senderLabelUser
}
