package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("messages")

		collection.Fields.Add(
			&core.TextField{Name: "negotiation_id", Required: true},
			&core.SelectField{
				Name:      "role",
				MaxSelect: 1,
				Values:    []string{"buyer", "seller", "mediator"},
			},
			&core.SelectField{
				Name:      "direction",
				MaxSelect: 1,
				Values:    []string{"to-buyer", "to-seller"},
			},
			&core.TextField{Name: "text", Max: 10000},
			&core.DateField{Name: "ts", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_messages_negotiation_id", false, "negotiation_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("messages")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
