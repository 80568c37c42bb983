package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"folio/internal/textutil"
)

// Labels of the structured prompt template, in template order.
const (
	LabelSubject      = "SUJETO"
	LabelScene        = "ESCENA"
	LabelStyle        = "ESTILO"
	LabelComposition  = "COMPOSICION"
	LabelLightColor   = "ILUMINACION_COLOR"
	LabelContinuity   = "CONTINUIDAD"
	LabelRestrictions = "RESTRICCIONES"
)

// StructuredLabels lists every label a structured prompt must carry.
var StructuredLabels = []string{
	LabelSubject,
	LabelScene,
	LabelStyle,
	LabelComposition,
	LabelLightColor,
	LabelContinuity,
	LabelRestrictions,
}

const (
	sentenceLimit = 160

	fallbackSubject    = "Personaje principal de la página."
	fallbackScene      = "Escena clave del cuento con foco narrativo."
	fallbackContinuity = "Mantener continuidad con las páginas vecinas."

	fixedStyle        = "Ilustracion narrativa infantil coherente con Cosmere."
	fixedComposition  = "Plano medio, lectura clara y foco en accion principal."
	fixedLightColor   = "Paleta ceniza rojiza con contraste suave."
	fixedRestrictions = "Sin texto incrustado, sin marcas de agua, anatomía consistente."
)

var labelCaser = cases.Upper(language.Und)

// IsStructuredPrompt reports whether every template label appears as the
// text before the first colon of some line.
func IsStructuredPrompt(prompt string) bool {
	found := make(map[string]bool, len(StructuredLabels))
	for _, line := range strings.Split(prompt, "\n") {
		label, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		found[labelCaser.String(strings.TrimSpace(label))] = true
	}
	for _, label := range StructuredLabels {
		if !found[label] {
			return false
		}
	}
	return true
}

// StructuredPrompt synthesizes a template prompt from the page text and a
// base prompt. The subject and continuity come from the first sentence of the
// page text, the scene from the first sentence of the base prompt.
func StructuredPrompt(pageText, basePrompt string) string {
	lines := []string{
		LabelSubject + ": " + textutil.FirstSentence(pageText, fallbackSubject, sentenceLimit),
		LabelScene + ": " + textutil.FirstSentence(basePrompt, fallbackScene, sentenceLimit),
		LabelStyle + ": " + fixedStyle,
		LabelComposition + ": " + fixedComposition,
		LabelLightColor + ": " + fixedLightColor,
		LabelContinuity + ": " + textutil.FirstSentence(pageText, fallbackContinuity, sentenceLimit),
		LabelRestrictions + ": " + fixedRestrictions,
	}
	return strings.Join(lines, "\n")
}
