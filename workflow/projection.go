package workflow

// ActionView is an allowed action as shown to clients
type ActionView struct {
	Key     Action      `json:"key"`
	Slug    string      `json:"slug"`
	Label   string      `json:"label"`
	Payload PayloadKind `json:"payload"`
	Target  Status      `json:"target_status"`
}

// AllowedActions lists what the actor may do with the order right now. It
// uses the same ownership and lookup rules as Validate, so every action
// returned here passes the guard given a well-formed payload.
func AllowedActions(order Order, actor Actor) []ActionView {
	views := []ActionView{}
	if !owns(order, actor) {
		return views
	}
	for _, t := range TransitionsFor(order.ServiceType, order.Status, actor.Role.Party()) {
		if !available(order, t) {
			continue
		}
		views = append(views, ActionView{
			Key:     t.Action,
			Slug:    t.Action.Slug(),
			Label:   t.Label,
			Payload: t.Payload,
			Target:  t.To,
		})
	}
	return views
}
