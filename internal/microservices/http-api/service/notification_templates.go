package service

import (
    "fmt"

    "conventionhub/internal/microservices/http-api/models"
)

// template is the translated text of one category
type template struct {
    Kind          models.Kind
    TitleKey      string
    MessageKey    string
    ActionTextKey string
}

// categoryTemplates gives every known category its locale keys.
// Keys live under notifications.<category> in the locale files.
var categoryTemplates = map[string]template{
    models.CategorySystem:                       tmpl(models.KindSystem, models.CategorySystem, false),
    models.CategoryEditionPublished:             tmpl(models.KindInfo, models.CategoryEditionPublished, true),
    models.CategoryEditionUpdated:               tmpl(models.KindInfo, models.CategoryEditionUpdated, true),
    models.CategoryVolunteerApplicationReceived: tmpl(models.KindInfo, models.CategoryVolunteerApplicationReceived, true),
    models.CategoryVolunteerApplicationAccepted: tmpl(models.KindSuccess, models.CategoryVolunteerApplicationAccepted, true),
    models.CategoryVolunteerApplicationRejected: tmpl(models.KindWarning, models.CategoryVolunteerApplicationRejected, false),
    models.CategoryVolunteerScheduleUpdated:     tmpl(models.KindInfo, models.CategoryVolunteerScheduleUpdated, true),
    models.CategoryCarpoolBookingReceived:       tmpl(models.KindInfo, models.CategoryCarpoolBookingReceived, true),
    models.CategoryCarpoolBookingAccepted:       tmpl(models.KindSuccess, models.CategoryCarpoolBookingAccepted, true),
    models.CategoryCarpoolBookingRejected:       tmpl(models.KindWarning, models.CategoryCarpoolBookingRejected, false),
    models.CategoryCarpoolCancelled:             tmpl(models.KindError, models.CategoryCarpoolCancelled, false),
    models.CategoryTicketPurchased:              tmpl(models.KindSuccess, models.CategoryTicketPurchased, true),
    models.CategoryNewMessage:                   tmpl(models.KindInfo, models.CategoryNewMessage, true),
}

func tmpl(kind models.Kind, category string, action bool) template {
    t := template{
        Kind:       kind,
        TitleKey:   "notifications." + category + ".title",
        MessageKey: "notifications." + category + ".message",
    }
    if action {
        t.ActionTextKey = "notifications." + category + ".action"
    }
    return t
}

// TemplateInput describes a domain event in terms of one category
type TemplateInput struct {
    UserID     string
    Category   string
    Params     map[string]any
    EntityType string
    EntityID   string
    ActionURL  string
}

// FromTemplate builds the CreateInput of a known category
func FromTemplate(in TemplateInput) (CreateInput, error) {
    t, ok := categoryTemplates[in.Category]
    if !ok {
        return CreateInput{}, fmt.Errorf("%w: no template for category %q", ErrInvalidInput, in.Category)
    }
    content := models.TranslatedContent(t.TitleKey, t.MessageKey, in.Params)
    if t.ActionTextKey != "" && in.ActionURL != "" {
        content = content.WithAction(t.ActionTextKey, "")
    }
    return CreateInput{
        UserID:     in.UserID,
        Kind:       t.Kind,
        Category:   in.Category,
        EntityType: in.EntityType,
        EntityID:   in.EntityID,
        ActionURL:  in.ActionURL,
        Content:    content,
    }, nil
}

// TemplateKeys lists every locale key the templates reference
func TemplateKeys() []string {
    keys := make([]string, 0, len(categoryTemplates)*3)
    for _, t := range categoryTemplates {
        keys = append(keys, t.TitleKey, t.MessageKey)
        if t.ActionTextKey != "" {
            keys = append(keys, t.ActionTextKey)
        }
    }
    return keys
}
