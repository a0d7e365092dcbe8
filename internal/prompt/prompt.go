// Package prompt assembles the instruction text that drives the diagnostic
// interview.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/orgdiag/internal/catalog"
)

// NoTracksPlaceholder replaces the catalog section when no active track
// exists.
const NoTracksPlaceholder = "Nenhuma trilha cadastrada no momento."

// catalogMarker is replaced by the rendered catalog.
const catalogMarker = "{{CATALOGO_DE_TRILHAS}}"

const protocolScript = `Você é um consultor organizacional conduzindo um diagnóstico corporativo estruturado com um colaborador da empresa.

Conduza a entrevista seguindo estritamente as fases abaixo, uma pergunta por vez:

Fase 1 - Contexto da empresa: setor, porte, número de colaboradores e estrutura de equipes.
Fase 2 - Desafios percebidos: os principais problemas que o participante enxerga no dia a dia.
Fase 3 - Aprofundamento: para cada problema, investigue impacto (0 a 5), frequência (0 a 5), alcance (0 a 5), causa raiz e evidências concretas.
Fase 4 - Priorização: classifique a severidade de cada problema como light, medium ou severe.
Fase 5 - Confirmação: apresente um resumo do que foi coletado no campo "summary" e pergunte se está correto com uma pergunta yes_no. Se o participante corrigir algo, ajuste e confirme novamente.
Fase 6 - Relatório final: após a confirmação, escreva o relatório em markdown e recomende trilhas do catálogo.

Regras de resposta:
- Responda SEMPRE com um único objeto JSON no formato do schema fornecido, sem texto fora do JSON.
- Enquanto houver perguntas, use status "in_progress", preencha "nextQuestion" e deixe "finalReport" como null.
- Ao concluir, use status "finalized", preencha "finalReport" e deixe "nextQuestion" como null.
- Atualize "progress" com a fase atual (currentStep de 1 a 6, totalSteps 6) e o título da fase.
- Mantenha em "collectedData" todos os problemas identificados até o momento.
- Para perguntas de escolha, informe as opções em "options"; para as demais, use null.

Regras de recomendação:
- É PROIBIDO recomendar qualquer trilha que não esteja no catálogo abaixo.
- Use em "trackName" exatamente o nome da trilha como aparece no catálogo, e em "category" a sua categoria.
- Se nenhuma trilha do catálogo resolver um problema, não recomende trilha para ele.
- Liste em "categoriesToAssociate" as categorias do catálogo relacionadas aos problemas encontrados.

Catálogo de trilhas disponíveis:

` + catalogMarker

// Assembler builds the protocol instruction prompt with the active catalog
// injected.
type Assembler struct {
	catalog catalog.Repository
}

// NewAssembler creates an Assembler reading tracks from repo.
func NewAssembler(repo catalog.Repository) *Assembler {
	return &Assembler{catalog: repo}
}

// Build returns the instruction prompt for the current catalog.
func (a *Assembler) Build(ctx context.Context) (string, error) {
	tracks, err := a.catalog.FindActive(ctx)
	if err != nil {
		return "", fmt.Errorf("load active tracks: %w", err)
	}
	return Render(tracks), nil
}

// Render returns the instruction prompt for the given tracks.
func Render(tracks []catalog.Track) string {
	return strings.Replace(protocolScript, catalogMarker, renderCatalog(tracks), 1)
}

func renderCatalog(tracks []catalog.Track) string {
	if len(tracks) == 0 {
		return NoTracksPlaceholder
	}

	var b strings.Builder
	for i, g := range catalog.GroupByCategory(tracks) {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n", g.Category)
		for _, t := range g.Tracks {
			writeTrack(&b, t)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTrack(b *strings.Builder, t catalog.Track) {
	fmt.Fprintf(b, "\n- Trilha: %s\n", t.Name)
	fmt.Fprintf(b, "  Nível: %s\n", orDash(t.Level))
	fmt.Fprintf(b, "  Categoria: %s\n", t.Category)
	fmt.Fprintf(b, "  Descrição: %s\n", orDash(t.Description))
	fmt.Fprintf(b, "  Áreas: %s\n", joinOrDash(t.Areas))
	fmt.Fprintf(b, "  Tags: %s\n", joinOrDash(t.Tags))
	fmt.Fprintf(b, "  Duração: %s\n", orDash(t.Duration))
	fmt.Fprintf(b, "  Objetivos: %s\n", joinOrDash(t.Objectives))
	if len(t.Metadata.ProblemsSolved) > 0 {
		fmt.Fprintf(b, "  Problemas que resolve: %s\n", strings.Join(t.Metadata.ProblemsSolved, "; "))
	}
	if len(t.Metadata.Competencies) > 0 {
		fmt.Fprintf(b, "  Competências: %s\n", strings.Join(t.Metadata.Competencies, "; "))
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
