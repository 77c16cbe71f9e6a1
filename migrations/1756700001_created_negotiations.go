package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("negotiations")

		collection.Fields.Add(
			&core.TextField{Name: "negotiation_id", Required: true},
			&core.TextField{Name: "ticket_id", Required: true},
			&core.TextField{Name: "seller_id", Required: true},
			&core.TextField{Name: "buyer_id", Required: true},
			&core.SelectField{
				Name:      "status",
				MaxSelect: 1,
				Values:    []string{"open", "closed"},
			},
			&core.TextField{Name: "agreed_price"},
			&core.DateField{Name: "last_update"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_negotiations_negotiation_id", true, "negotiation_id", "")
		collection.AddIndex("idx_negotiations_ticket_id", false, "ticket_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("negotiations")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
