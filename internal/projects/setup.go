package projects

import "github.com/cuencahub/hub-backend/internal/db"

func Init() {
	db.MustInit("projects", &Project{}, &Member{}, &Comment{})
}
