package component

// Physics хранит состояние интегратора движения сущности.
// IsGrounded сбрасывается каждый кадр и заново выставляется системой коллизий
// при подтверждённом контакте сверху — так обнаруживается сход с платформы
// без отдельного leave-события.
type Physics struct {
	VelocityX         float64 `json:"velocityX"`
	VelocityY         float64 `json:"velocityY"`
	Gravity           float64 `json:"gravity"`
	AffectedByGravity bool    `json:"affectedByGravity"`
	Friction          float64 `json:"friction,omitempty"`
	AirResistance     float64 `json:"airResistance,omitempty"`
	MaxFallSpeed      float64 `json:"maxFallSpeed,omitempty"`
	Dampening         float64 `json:"dampening,omitempty"`
	IsGrounded        bool    `json:"isGrounded"`
}

// Kind возвращает тип компонента
func (p *Physics) Kind() Kind { return KindPhysics }

// Clone возвращает копию компонента
func (p *Physics) Clone() Component {
	c := *p
	return &c
}
