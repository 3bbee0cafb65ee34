package routing

import (
	"fmt"
	"strings"

	"whatsapp-router/internal/models"
)

const (
	checkingText      = "Estamos conferindo se o seu número está cadastrado em algum projeto para direcioná-lo corretamente..."
	invalidOptionText = "Opção inválida. Por favor, escolha um dos números listados."
	notRegisteredText = "Desculpe, você não está cadastrado em nenhum projeto no momento."
)

// Greetings are the two messages a contact receives before their first
// message is routed.
func Greetings(botName string) []string {
	return []string{
		fmt.Sprintf("Olá! Você está falando com o Bot de WhatsApp de %s. 👋", botName),
		checkingText,
	}
}

func NotRegistered() string {
	return notRegisteredText
}

func detectedText(name string) string {
	return fmt.Sprintf("✅ Número encontrado! Você foi detectado no projeto: *%s*", name)
}

func confirmedText(name string) string {
	return fmt.Sprintf("Perfeito! Agora vamos falar sobre o projeto: %s. Como posso ajudá-lo?", name)
}

func selectionPrompt(projects []models.Project) string {
	var b strings.Builder
	b.WriteString("Você está cadastrado em múltiplos projetos. Por favor, escolha sobre qual projeto deseja falar:\n\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "%d - %s\n", p.ID, p.Name)
	}
	b.WriteString("\nDigite o número do projeto que deseja discutir.")
	return b.String()
}
