package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("system_logs")

		collection.Fields.Add(
			&core.SelectField{
				Name:      "level",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"info", "warn", "error"},
			},
			&core.TextField{
				Name:     "component",
				Required: true,
				Max:      100,
			},
			&core.TextField{
				Name:     "message",
				Required: true,
			},
			&core.JSONField{
				Name:    "metadata",
				MaxSize: 1 << 16,
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		collection.AddIndex("idx_system_logs_created", false, "created", "")
		collection.AddIndex("idx_system_logs_level_created", false, "level, created", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("system_logs")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
