package knowledge

import (
	"strings"
	"testing"

	"github.com/rage-labs/ragechat/internal/models"
)

func TestRenderEmptyCatalog(t *testing.T) {
	got := Render(nil)
	if got != EmptyCatalogContext {
		t.Errorf("Render(nil) = %q, want %q", got, EmptyCatalogContext)
	}
}

func TestRenderHeader(t *testing.T) {
	got := Render([]models.KnowledgeEntry{{
		Category: models.CategoryFAQ,
		Data:     map[string]interface{}{"pergunta": "Como funciona?", "resposta": "Simples."},
	}})
	if !strings.HasPrefix(got, "=== BASE DE CONHECIMENTO ===") {
		t.Errorf("rendered catalog missing header:\n%s", got)
	}
	if !strings.Contains(got, "FAQ: Como funciona?") || !strings.Contains(got, "Resposta: Simples.") {
		t.Errorf("FAQ entry not rendered:\n%s", got)
	}
}

func TestFormatProductMultiplePlans(t *testing.T) {
	data := map[string]interface{}{
		"nome":         "RAG-E",
		"categoria":    "Software",
		"tipo_produto": "assinatura_multiplos_planos",
		"descricao":    "Atendimento com IA",
		"planos": []interface{}{
			map[string]interface{}{
				"nome":           "Essencial",
				"preco_mensal":   float64(260),
				"preco_anual":    float64(2600),
				"desconto_anual": "2 meses grátis",
				"beneficios":     []interface{}{"Atendimento com IA", "Integração WhatsApp"},
				"ideal_para":     "Pequenos negócios",
			},
		},
	}

	got := formatProduct(data)
	wantParts := []string{
		"PRODUTO: RAG-E",
		"Tipo: Assinatura (Múltiplos Planos)",
		"Plano Essencial:",
		"Preço mensal: R$ 260",
		"Preço anual: R$ 2600 (2 meses grátis)",
		"• Atendimento com IA",
		"Ideal para: Pequenos negócios",
	}
	for _, part := range wantParts {
		if !strings.Contains(got, part) {
			t.Errorf("formatted product missing %q:\n%s", part, got)
		}
	}
}

func TestFormatProductShapes(t *testing.T) {
	cases := []struct {
		name string
		data map[string]interface{}
		want []string
	}{
		{
			"single plan subscription",
			map[string]interface{}{
				"nome":         "Plano Único",
				"tipo_produto": "assinatura_plano_unico",
				"preco_mensal": "99.90",
				"beneficios":   []interface{}{"Suporte"},
			},
			[]string{"Preço mensal: R$ 99.90", "• Suporte"},
		},
		{
			"single product",
			map[string]interface{}{
				"nome":         "Curso",
				"tipo_produto": "produto_unico",
				"preco":        float64(497),
			},
			[]string{"Preço: R$ 497"},
		},
		{
			"combo",
			map[string]interface{}{
				"nome":           "Combo",
				"tipo_produto":   "pacote_combo",
				"preco":          float64(150),
				"itens_inclusos": []interface{}{"Item A", "Item B"},
			},
			[]string{"Preço do pacote: R$ 150", "• Item A", "• Item B"},
		},
		{
			"on request",
			map[string]interface{}{
				"nome":         "Consultoria",
				"tipo_produto": "sob_consulta",
			},
			[]string{"Preço: Sob consulta"},
		},
		{
			"legacy without type",
			map[string]interface{}{
				"nome":  "Antigo",
				"preco": "100",
			},
			[]string{"PRODUTO: Antigo", "Preço: 100"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := formatProduct(tc.data)
			for _, part := range tc.want {
				if !strings.Contains(got, part) {
					t.Errorf("missing %q:\n%s", part, got)
				}
			}
		})
	}
}

func TestFormatCompanyFieldAliases(t *testing.T) {
	got := formatCompany(map[string]interface{}{
		"topico":   "Horário",
		"conteudo": "Seg a sex, 9h às 18h",
	})
	if !strings.Contains(got, "INFORMAÇÃO: Horário") || !strings.Contains(got, "Seg a sex") {
		t.Errorf("company aliases not handled:\n%s", got)
	}
}

func TestFormatService(t *testing.T) {
	got := formatService(map[string]interface{}{
		"nome":      "Implantação",
		"descricao": "Setup assistido",
		"preco":     "500",
	})
	for _, part := range []string{"SERVIÇO: Implantação", "Descrição: Setup assistido", "Preço: 500"} {
		if !strings.Contains(got, part) {
			t.Errorf("missing %q:\n%s", part, got)
		}
	}
}

func TestFormatCustomListsFields(t *testing.T) {
	got := formatCustom(map[string]interface{}{
		"titulo":    "Garantia",
		"condicoes": []interface{}{"30 dias", "Sem perguntas"},
	})
	for _, part := range []string{"INFORMAÇÃO: Garantia", "• 30 dias", "• Sem perguntas"} {
		if !strings.Contains(got, part) {
			t.Errorf("missing %q:\n%s", part, got)
		}
	}
}
