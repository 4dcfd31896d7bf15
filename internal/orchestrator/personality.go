package orchestrator

import (
	"fmt"
	"strings"

	"github.com/rage-labs/ragechat/internal/models"
)

// personalityLevels maps the 1-10 register level to its description.
var personalityLevels = map[int]string{
	1:  "Extremamente formal",
	2:  "Formal",
	3:  "Levemente formal",
	4:  "Equilibrado tendendo ao formal",
	5:  "Equilibrado (profissional e amigável)",
	6:  "Equilibrado tendendo ao casual",
	7:  "Casual",
	8:  "Animado e entusiasmado",
	9:  "Muito entusiasmado",
	10: "Técnico e especialista",
}

// toneInstructions maps tone of voice to its behavioral instruction.
var toneInstructions = map[models.VoiceTone]string{
	models.ToneFormal:   "Use linguagem formal, evite gírias e contrações",
	models.ToneFriendly: "Use tom conversacional, seja caloroso e acessível",
	models.ToneDirect:   "Seja direto e conciso, foque nos fatos",
	models.ToneCasual:   "Use linguagem casual, gírias são bem-vindas",
}

// addressInstructions maps address form to its behavioral instruction.
var addressInstructions = map[models.AddressForm]string{
	models.AddressVoce:     "Trate o cliente por 'você'",
	models.AddressSenhor:   "Trate o cliente por 'senhor' ou 'senhora'",
	models.AddressInformal: "Use tratamento informal como 'tu' se apropriado",
}

// formatPersonality renders the agent personality block of the system
// prompt.
func formatPersonality(p models.Personality) string {
	var lines []string

	lines = append(lines, "=== PERSONALIDADE DO AGENTE ===")
	name := p.Name
	if name == "" {
		name = models.DefaultPersonality().Name
	}
	lines = append(lines, "Nome: "+name)

	levelDesc, ok := personalityLevels[p.Level]
	if !ok {
		levelDesc = "Equilibrado"
	}
	lines = append(lines, fmt.Sprintf("Nível de Personalidade: %d (%s)", p.Level, levelDesc))
	lines = append(lines, "Tom de Voz: "+string(p.Tone))
	lines = append(lines, "Forma de Tratamento: "+string(p.AddressForm))
	lines = append(lines, fmt.Sprintf("Mensagem Inicial: %q", p.Greeting))
	lines = append(lines, "")

	lines = append(lines, "Instruções de comportamento:")
	if instr, ok := toneInstructions[p.Tone]; ok {
		lines = append(lines, "- "+instr)
	}
	if instr, ok := addressInstructions[p.AddressForm]; ok {
		lines = append(lines, "- "+instr)
	}
	if p.Level <= 3 {
		lines = append(lines, "- Mantenha extrema formalidade e distância profissional")
	} else if p.Level >= 8 {
		lines = append(lines, "- Demonstre entusiasmo e energia nas respostas")
		lines = append(lines, "- Use emojis quando apropriado para transmitir emoção")
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

// buildSystemPrompt combines the personality block, the knowledge
// context and the fixed instruction sections.
func buildSystemPrompt(knowledgeContext string, p models.Personality) string {
	parts := []string{
		formatPersonality(p),
		knowledgeContext,
		"",
		"=== INSTRUÇÕES ===",
		"Você é o assistente virtual configurado acima. Use APENAS as informações fornecidas na base de conhecimento para responder.",
		"Se não souber a resposta, seja honesto e ofereça ajuda para entrar em contato com um humano.",
		"Mantenha a personalidade e tom de voz especificados.",
		"Responda sempre em português brasileiro.",
		"",
		"=== FORMATAÇÃO DE RESPOSTAS ===",
		"Ao apresentar produtos ou planos:",
		"1. Use quebras de linha para separar seções",
		"2. Use negrito (*texto*) para destacar nomes de planos e preços principais",
		"3. Liste benefícios com marcadores (• ou -) um por linha",
		"4. Agrupe informações relacionadas",
		"5. Evite parágrafos longos - prefira listas e tópicos",
		"6. Para múltiplos planos, apresente um de cada vez com espaçamento claro",
		"7. Use emojis com moderação para melhorar a visualização (💰 para preços, ✨ para destaques, 👥 para público-alvo)",
		"",
		"✅ BOM - Exemplo de formatação clara:",
		"*Plano Essencial*",
		"💰 R$ 260/mês ou R$ 2.600/ano (2 meses grátis)",
		"",
		"O que está incluído:",
		"• Atendimento com IA",
		"• Base de conhecimento personalizada",
		"• Integração WhatsApp",
		"",
		"👥 Ideal para: Pequenos negócios",
		"",
		"❌ EVITE - Formatação confusa:",
		"Plano Essencial: Preço mensal: R$ 260 Preço anual: R$ 2600 (2 meses grátis) Benefícios: Atendimento com IA por mensagens...",
	}
	return strings.Join(parts, "\n")
}
