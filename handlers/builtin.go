package handlers

// Replies for the built-in canned handlers.
const (
	OrdersReply   = "Agente Pedidos: próximamente. Procesando consulta sobre pedidos."
	OtherReply    = "Agente para atender otras consultas: próximamente."
	TrackingReply = "Si quieres revisar un pedido, por favor proporciona el número de pedido o el correo asociado."
	HumanReply    = "Te transferiré a un agente humano. Por favor espera un momento."
	GreetingReply = "¡Hola! Bienvenido a nuestra tienda. ¿En qué puedo ayudarte hoy?"
)

// HumanLabel is the inbox label applied on escalation.
const HumanLabel = "humano"

// Replies used for remote agents that are not configured.
const (
	ProductsReply = "Agente Productos: próximamente."
	PaymentsReply = "Agente Pagos: próximamente."
)
