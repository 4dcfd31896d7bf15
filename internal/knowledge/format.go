// Package knowledge renders the tenant knowledge catalog into prompt
// context and provides the semantic-search path over indexed chunks.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/rage-labs/ragechat/internal/models"
)

// EmptyCatalogContext is returned when a tenant has no catalog entries.
const EmptyCatalogContext = "Nenhuma base de conhecimento cadastrada para este usuário."

// catalogHeader opens the rendered catalog block.
const catalogHeader = "=== BASE DE CONHECIMENTO ==="

// productTypeLabels maps the stored product-type tags to display labels.
var productTypeLabels = map[string]string{
	"produto_unico":               "Produto Único",
	"assinatura_plano_unico":      "Assinatura (Plano Único)",
	"assinatura_multiplos_planos": "Assinatura (Múltiplos Planos)",
	"pacote_combo":                "Pacote/Combo",
	"sob_consulta":                "Sob Consulta",
}

// Render formats catalog entries into the knowledge block injected into
// the system prompt. Returns EmptyCatalogContext when there is nothing
// to render.
func Render(entries []models.KnowledgeEntry) string {
	if len(entries) == 0 {
		return EmptyCatalogContext
	}

	lines := []string{catalogHeader, ""}
	for _, e := range entries {
		lines = append(lines, renderEntry(e), "")
	}
	return strings.Join(lines, "\n")
}

// renderEntry dispatches on the closed category set, with a default
// branch for values the datastore may grow that this binary predates.
func renderEntry(e models.KnowledgeEntry) string {
	switch e.Category {
	case models.CategoryProduct:
		return formatProduct(e.Data)
	case models.CategoryService:
		return formatService(e.Data)
	case models.CategoryCompany:
		return formatCompany(e.Data)
	case models.CategoryFAQ:
		return formatFAQ(e.Data)
	case models.CategoryCustom:
		return formatCustom(e.Data)
	default:
		return fmt.Sprintf("%s: %v", capitalize(string(e.Category)), e.Data)
	}
}

// formatProduct renders a product entry, handling the four pricing
// shapes plus a fallback for legacy rows.
func formatProduct(data map[string]interface{}) string {
	var lines []string

	nome := str(data, "nome")
	if nome == "" {
		nome = "Produto sem nome"
	}
	lines = append(lines, "PRODUTO: "+nome)

	if v := str(data, "categoria"); v != "" {
		lines = append(lines, "Categoria: "+v)
	}
	tipo := str(data, "tipo_produto")
	if tipo != "" {
		label, ok := productTypeLabels[tipo]
		if !ok {
			label = tipo
		}
		lines = append(lines, "Tipo: "+label)
	}
	if v := str(data, "descricao"); v != "" {
		lines = append(lines, "Descrição: "+v)
	}

	switch tipo {
	case "assinatura_multiplos_planos":
		if planos := list(data, "planos"); len(planos) > 0 {
			lines = append(lines, "", "Planos disponíveis:", "")
			for _, raw := range planos {
				plano, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				nomePlano := str(plano, "nome")
				if nomePlano == "" {
					nomePlano = "Sem nome"
				}
				lines = append(lines, fmt.Sprintf("Plano %s:", nomePlano))
				if v := str(plano, "preco_mensal"); v != "" {
					lines = append(lines, "  Preço mensal: R$ "+v)
				}
				if v := str(plano, "preco_anual"); v != "" {
					desconto := ""
					if d := str(plano, "desconto_anual"); d != "" {
						desconto = fmt.Sprintf(" (%s)", d)
					}
					lines = append(lines, "  Preço anual: R$ "+v+desconto)
				}
				if beneficios := list(plano, "beneficios"); len(beneficios) > 0 {
					lines = append(lines, "  Benefícios:")
					for _, b := range beneficios {
						lines = append(lines, fmt.Sprintf("    • %v", b))
					}
				}
				if v := str(plano, "limite_usuarios"); v != "" {
					lines = append(lines, "  Limite de usuários: "+v)
				}
				if v := str(plano, "limite_conversas"); v != "" {
					lines = append(lines, "  Limite de conversas: "+v)
				}
				if v := str(plano, "ideal_para"); v != "" {
					lines = append(lines, "  Ideal para: "+v)
				}
				lines = append(lines, "")
			}
		}
	case "assinatura_plano_unico":
		if v := str(data, "preco_mensal"); v != "" {
			lines = append(lines, "Preço mensal: R$ "+v)
		}
		if v := str(data, "preco_anual"); v != "" {
			desconto := ""
			if d := str(data, "desconto_anual"); d != "" {
				desconto = fmt.Sprintf(" (%s)", d)
			}
			lines = append(lines, "Preço anual: R$ "+v+desconto)
		}
		if beneficios := list(data, "beneficios"); len(beneficios) > 0 {
			lines = append(lines, "Benefícios:")
			for _, b := range beneficios {
				lines = append(lines, fmt.Sprintf("  • %v", b))
			}
		}
	case "produto_unico":
		if v := str(data, "preco"); v != "" {
			lines = append(lines, "Preço: R$ "+v)
		}
		if caracteristicas := list(data, "caracteristicas"); len(caracteristicas) > 0 {
			lines = append(lines, "Características:")
			for _, c := range caracteristicas {
				lines = append(lines, fmt.Sprintf("  • %v", c))
			}
		} else if v := str(data, "caracteristicas"); v != "" {
			lines = append(lines, "Características: "+v)
		}
	case "pacote_combo":
		if v := str(data, "preco"); v != "" {
			lines = append(lines, "Preço do pacote: R$ "+v)
		}
		if itens := list(data, "itens_inclusos"); len(itens) > 0 {
			lines = append(lines, "Itens inclusos:")
			for _, item := range itens {
				lines = append(lines, fmt.Sprintf("  • %v", item))
			}
		}
	case "sob_consulta":
		lines = append(lines, "Preço: Sob consulta")
	default:
		// Legacy rows without a product type tag.
		if v := str(data, "preco"); v != "" {
			lines = append(lines, "Preço: "+v)
		}
		if v := str(data, "caracteristicas"); v != "" {
			lines = append(lines, "Características: "+v)
		}
	}

	return strings.Join(lines, "\n")
}

// formatService renders a service entry.
func formatService(data map[string]interface{}) string {
	var lines []string
	if v := str(data, "nome"); v != "" {
		lines = append(lines, "SERVIÇO: "+v)
	}
	if v := str(data, "descricao"); v != "" {
		lines = append(lines, "Descrição: "+v)
	}
	if v := str(data, "duracao"); v != "" {
		lines = append(lines, "Duração: "+v)
	}
	if v := str(data, "preco"); v != "" {
		lines = append(lines, "Preço: "+v)
	}
	if beneficios := list(data, "beneficios"); len(beneficios) > 0 {
		lines = append(lines, "Benefícios:")
		for _, b := range beneficios {
			lines = append(lines, fmt.Sprintf("  • %v", b))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Serviço: %v", data)
	}
	return strings.Join(lines, "\n")
}

// formatCompany renders a company-info entry, accepting both old and
// new field names.
func formatCompany(data map[string]interface{}) string {
	var lines []string
	titulo := str(data, "titulo")
	if titulo == "" {
		titulo = str(data, "topico")
	}
	conteudo := str(data, "descricao")
	if conteudo == "" {
		conteudo = str(data, "conteudo")
	}
	if titulo != "" {
		lines = append(lines, "INFORMAÇÃO: "+titulo)
	}
	if conteudo != "" {
		lines = append(lines, conteudo)
	}
	if v := str(data, "informacoes_adicionais"); v != "" {
		lines = append(lines, v)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Empresa: %v", data)
	}
	return strings.Join(lines, "\n")
}

// formatFAQ renders a question/answer entry.
func formatFAQ(data map[string]interface{}) string {
	var lines []string
	if v := str(data, "pergunta"); v != "" {
		lines = append(lines, "FAQ: "+v)
	}
	if v := str(data, "resposta"); v != "" {
		lines = append(lines, "Resposta: "+v)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("FAQ: %v", data)
	}
	return strings.Join(lines, "\n")
}

// formatCustom renders a free-shape entry: a best-effort title followed
// by the remaining fields.
func formatCustom(data map[string]interface{}) string {
	var lines []string
	titulo := str(data, "titulo")
	if titulo == "" {
		titulo = str(data, "nome")
	}
	if titulo == "" {
		titulo = str(data, "topico")
	}
	if titulo != "" {
		lines = append(lines, "INFORMAÇÃO: "+titulo)
	}
	for key, value := range data {
		if key == "titulo" || key == "nome" || key == "topico" || value == nil {
			continue
		}
		if items, ok := value.([]interface{}); ok {
			lines = append(lines, capitalize(key)+":")
			for _, item := range items {
				lines = append(lines, fmt.Sprintf("  • %v", item))
			}
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", capitalize(key), value))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Personalizado: %v", data)
	}
	return strings.Join(lines, "\n")
}

// str returns the field as a string, rendering numbers without a
// decimal point when they are whole.
func str(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case []interface{}, map[string]interface{}:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// list returns the field as a slice when it is one.
func list(data map[string]interface{}, key string) []interface{} {
	if v, ok := data[key].([]interface{}); ok {
		return v
	}
	return nil
}

// capitalize upper-cases the first byte, matching how catalog keys are
// surfaced (ASCII keys by convention).
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
