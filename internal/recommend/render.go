package recommend

import (
	"fmt"

	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/pkg/utils"
)

const maxDescription = 400

// ModalityEmoji returns the icon for a delivery mode.
func ModalityEmoji(modality string) string {
	switch normalize(modality) {
	case "virtual":
		return "💻"
	case "presencial":
		return "🏫"
	case "mixta", "mixto", "hibrida", "hibrido":
		return "🔀"
	default:
		return "📘"
	}
}

func (a *Assembler) line(n int, c models.Course) string {
	return fmt.Sprintf("%d. %s %s (%s, %s) · %s",
		n, ModalityEmoji(c.Modality), c.Name, c.Modality, c.OfferType, a.audience.Label(c))
}

// Detail renders every known field of one offering.
func (a *Assembler) Detail(c models.Course) []string {
	out := []string{fmt.Sprintf("%s %s", ModalityEmoji(c.Modality), c.Name)}
	add := func(label, value string) {
		if value != "" {
			out = append(out, label+": "+value)
		}
	}
	add("Modalidad", c.Modality)
	add("Tipo de oferta", c.OfferType)
	add("Área", c.Area)
	add("Unidad", c.Unit)
	add("Dependencia", c.Department)
	add("Descripción", utils.Truncate(utils.NormalizeSpace(c.Description), maxDescription))
	out = append(out, "Dirigido a: "+a.audience.Label(c))
	return out
}
