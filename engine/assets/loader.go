package assets

import "github.com/spaghettifunk/marionette/engine/resources"

type Loader interface {
	// params lets a loader take extra input, such as the skeleton a clip animates.
	Load(path string, params interface{}) (*resources.Resource, error)
	Unload(*resources.Resource) error
}
