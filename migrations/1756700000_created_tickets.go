package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true},
			&core.TextField{Name: "seller_id", Required: true},
			&core.TextField{Name: "category"},
			&core.JSONField{Name: "details", MaxSize: 2000000},
			&core.NumberField{Name: "ask_price"},
			&core.SelectField{
				Name:      "status",
				MaxSelect: 1,
				Values:    []string{"available", "negotiating", "sold"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "ticket_id", "")
		collection.AddIndex("idx_tickets_category", false, "category", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
