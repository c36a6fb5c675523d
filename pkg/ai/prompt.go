package ai

import (
	"strings"
)

// ScoreMarker precedes the numeric grade requested by the scored template.
const ScoreMarker = "CALIFICACIÓN:"

// PromptOptions selects between the fixed prompt templates.
type PromptOptions struct {
	IncludeScore bool
}

const promptIntro = `Eres un profesor universitario experto en evaluación de trabajos académicos.
A continuación te proporciono los criterios de evaluación y el trabajo de un estudiante o docente.`

const feedbackInstructions = `Proporciona una evaluación detallada que incluya:

1. **PUNTOS FUERTES** (1-3 aspectos bien desarrollados)
2. **ÁREAS DE MEJORA** (1-3 aspectos a mejorar con sugerencias concretas)
3. **COMENTARIOS FINALES** (retroalimentación constructiva y motivadora)

Usa un tono profesional pero cercano, destacando los logros y ofreciendo guía para mejorar.
Organiza la respuesta con encabezados claros y bullet points para mejor legibilidad. La retroalimentación constructiva y motivadora sea máximo 200 caracteres.`

const scoreInstructions = `Asigna además una calificación numérica de 0 a 10 basada estrictamente en los criterios de evaluación.
Termina la respuesta con una única línea con el formato exacto:
` + ScoreMarker + ` <número>/10`

// BuildPrompt renders the evaluation prompt. The rubric and submission text are
// embedded verbatim.
func BuildPrompt(rubric, submission, name string, opts PromptOptions) string {
	builder := strings.Builder{}
	builder.WriteString(promptIntro)
	builder.WriteString("\n\n**CRITERIOS DE EVALUACIÓN:**\n")
	builder.WriteString(rubric)
	builder.WriteString("\n\n**TRABAJO DEL ESTUDIANTE O DOCENTE")
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		builder.WriteString(" ")
		builder.WriteString(strings.ToUpper(trimmed))
	}
	builder.WriteString(":**\n")
	builder.WriteString(submission)
	builder.WriteString("\n\n")
	builder.WriteString(feedbackInstructions)
	if opts.IncludeScore {
		builder.WriteString("\n\n")
		builder.WriteString(scoreInstructions)
	}
	builder.WriteString("\n")
	return builder.String()
}
