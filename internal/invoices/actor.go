package invoices

// Actor = identitas yang memicu transisi. Engine tidak melakukan autentikasi;
// role sudah diverifikasi gate di depan dan di sini hanya menentukan apakah
// skip-forward diizinkan.
type Actor struct {
	Name string
	Role Role
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCashier  Role = "cashier"
	RoleOwner    Role = "owner"
	RoleSystem   Role = "system"
)

// SystemTimeout: aktor sweep pembatalan otomatis ("system:timeout" di log).
var SystemTimeout = Actor{Name: "timeout", Role: RoleSystem}

func (a Actor) Privileged() bool {
	return a.Role == RoleCashier || a.Role == RoleOwner
}

// String dipakai sebagai kolom actor di status log / cancelled_transactions.
func (a Actor) String() string {
	if a.Name == "" {
		return string(a.Role)
	}
	if a.Role == "" {
		return a.Name
	}
	return string(a.Role) + ":" + a.Name
}
