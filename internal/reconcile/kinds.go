package reconcile

import (
	"fmt"
	"sort"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// commonAliases lists header spellings seen in point-of-sale and bank exports.
var commonAliases = map[string][]string{
	"data":            {"date", "dt", "data movimento", "data lancamento", "data do movimento", "dia"},
	"hora":            {"time", "horario", "hora movimento"},
	"loja":            {"filial", "store", "unidade", "empresa"},
	"operador":        {"caixa", "operator", "usuario"},
	"documento":       {"doc", "n documento", "numero documento", "nr documento", "referencia", "ref", "fitid"},
	"valor":           {"amount", "vlr", "valor r$", "valor total", "total"},
	"historico":       {"descricao", "description", "memo", "lancamento"},
	"motivo":          {"observacao", "obs", "descricao", "justificativa"},
	"forma_pagamento": {"forma de pagamento", "finalizadora", "payment method", "meio de pagamento"},
	"quantidade":      {"qtd", "qtde", "quantity"},
	"saldo":           {"balance", "saldo r$"},
	"competencia":     {"mes", "periodo", "mes competencia"},
	"matricula":       {"registro", "id funcionario", "codigo"},
	"funcionario":     {"colaborador", "nome", "employee"},
	"evento":          {"verba", "rubrica", "descricao evento"},
	"centro_custo":    {"centro de custo", "cc", "cost center"},
	"conta":           {"conta contabil", "account"},
	"percentual":      {"%", "perc", "percent"},
}

func aliasesFor(columns []string) map[string][]string {
	out := make(map[string][]string)
	for _, c := range columns {
		if a, ok := commonAliases[c]; ok {
			out[c] = a
		}
	}
	return out
}

// builtinDefinitions returns the report layouts handled out of the box.
func builtinDefinitions() []Definition {
	defs := []Definition{
		{
			Kind:     model.KindCashDiscrepancy,
			Table:    "quebra_caixa",
			Strategy: model.StrategyDateRange,
			Columns:  []string{"data", "loja", "operador", "valor_esperado", "valor_apurado", "diferenca", "observacao"},
			Roles:    Roles{Date: "data", Amount: "diferenca", Description: "operador"},
		},
		{
			Kind:     model.KindPaymentMethods,
			Table:    "formas_pagamento",
			Strategy: model.StrategyDateRange,
			Columns:  []string{"data", "loja", "forma_pagamento", "quantidade", "valor"},
			Roles:    Roles{Date: "data", Amount: "valor", Description: "forma_pagamento"},
		},
		{
			Kind:     model.KindDailySales,
			Table:    "vendas_diarias",
			Strategy: model.StrategyDateRange,
			Columns:  []string{"data", "loja", "cupons", "valor_bruto", "descontos", "valor_liquido"},
			Roles:    Roles{Date: "data", Amount: "valor_liquido"},
		},
		{
			Kind:     model.KindSangria,
			Table:    "sangrias",
			Strategy: model.StrategyKey,
			Columns:  []string{"data", "hora", "loja", "operador", "documento", "valor", "motivo", "chave"},
			Roles: Roles{
				Date:        "data",
				Time:        "hora",
				Reference:   "documento",
				Amount:      "valor",
				Description: "motivo",
				Key:         "chave",
			},
		},
		{
			Kind:     model.KindBankStatement,
			Table:    "extrato_bancario",
			Strategy: model.StrategyKey,
			Columns:  []string{"data", "documento", "historico", "valor", "saldo", "chave"},
			Roles: Roles{
				Date:        "data",
				Reference:   "documento",
				Amount:      "valor",
				Description: "historico",
				Key:         "chave",
			},
		},
		{
			Kind:     model.KindRateio,
			Table:    "rateio",
			Strategy: model.StrategyDateRange,
			Columns:  []string{"data", "centro_custo", "conta", "percentual", "valor"},
			Roles:    Roles{Date: "data", Amount: "valor", Description: "conta"},
		},
		{
			Kind:     model.KindPayroll,
			Table:    "folha_pagamento",
			Strategy: model.StrategyKey,
			Columns:  []string{"competencia", "matricula", "funcionario", "evento", "valor", "chave"},
			Roles: Roles{
				Date:        "competencia",
				Reference:   "matricula",
				Amount:      "valor",
				Description: "evento",
				Key:         "chave",
			},
		},
	}

	for i := range defs {
		defs[i].Aliases = aliasesFor(defs[i].Columns)
	}
	return defs
}

// Catalog holds the schema of every supported report kind.
type Catalog struct {
	schemas map[model.ReportKind]*Schema
}

// NewCatalog builds the built-in schemas. tables maps a kind name to a
// replacement destination table; empty values are ignored.
func NewCatalog(tables map[string]string) (*Catalog, error) {
	c := &Catalog{schemas: make(map[model.ReportKind]*Schema)}

	for name := range tables {
		if _, err := model.ParseReportKind(name); err != nil {
			return nil, fmt.Errorf("table override: %w", err)
		}
	}

	for _, def := range builtinDefinitions() {
		if t := tables[string(def.Kind)]; t != "" {
			def.Table = t
		}
		s, err := NewSchema(def)
		if err != nil {
			return nil, err
		}
		c.schemas[def.Kind] = s
	}

	return c, nil
}

// Schema returns the schema for kind.
func (c *Catalog) Schema(kind model.ReportKind) (*Schema, bool) {
	s, ok := c.schemas[kind]
	return s, ok
}

// Kinds returns the kinds in the catalog, sorted by name.
func (c *Catalog) Kinds() []model.ReportKind {
	kinds := make([]model.ReportKind, 0, len(c.schemas))
	for k := range c.schemas {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
