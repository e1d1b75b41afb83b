package boreal

import "fmt"

// Attribute enumerates the per-connection configuration surface.
type Attribute int

const (
	AttrAccount Attribute = iota
	AttrUser
	AttrPassword
	AttrDatabase
	AttrSchema
	AttrWarehouse
	AttrRole
	AttrHost
	AttrPort
	AttrProtocol
	AttrPasscode
	AttrPasscodeInPassword
	AttrInsecureMode
	AttrLoginTimeout
	AttrNetworkTimeout
	AttrAutocommit
)

var attributeNames = map[Attribute]string{
	AttrAccount:            "account",
	AttrUser:               "user",
	AttrPassword:           "password",
	AttrDatabase:           "database",
	AttrSchema:             "schema",
	AttrWarehouse:          "warehouse",
	AttrRole:               "role",
	AttrHost:               "host",
	AttrPort:               "port",
	AttrProtocol:           "protocol",
	AttrPasscode:           "passcode",
	AttrPasscodeInPassword: "passcodeInPassword",
	AttrInsecureMode:       "insecureMode",
	AttrLoginTimeout:       "loginTimeout",
	AttrNetworkTimeout:     "networkTimeout",
	AttrAutocommit:         "autocommit",
}

func (a Attribute) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(%d)", int(a))
}
