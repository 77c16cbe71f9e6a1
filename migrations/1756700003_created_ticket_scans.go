package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("ticket_scans")

		collection.Fields.Add(
			&core.TextField{Name: "scan_id", Required: true},
			&core.TextField{Name: "ocr_text", Max: 100000},
			&core.TextField{Name: "summary", Max: 100000},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_ticket_scans_scan_id", true, "scan_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_scans")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
