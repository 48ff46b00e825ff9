package domain

// Role определяет права пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User: учётная запись. Выдача сессий и пароли живут вне этого сервиса.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      Role
	Active    bool
}

// Actor: аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin сообщает, что актор: администратор.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess сообщает, может ли актор читать ресурс владельца ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == ownerID)
}

// Owner возвращает публичные данные пользователя для заказов.
func (u User) Owner() OrderOwner {
	return OrderOwner{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
