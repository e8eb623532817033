package surrealdb

// AccessName is the record access method users sign up and sign in with.
const AccessName = "account"

// schema is applied by Migrate. Workspace tables are owner-scoped for record
// users; the server itself connects as a system user and filters on owner
// explicitly.
const schema = `
DEFINE TABLE IF NOT EXISTS account SCHEMAFULL
	PERMISSIONS
		FOR select, update WHERE id = $auth.id
		FOR create, delete NONE;
DEFINE FIELD IF NOT EXISTS email ON account TYPE string ASSERT string::is::email($value);
DEFINE FIELD IF NOT EXISTS password ON account TYPE string;
DEFINE FIELD IF NOT EXISTS created_at ON account TYPE datetime DEFAULT time::now();
DEFINE INDEX IF NOT EXISTS account_email ON account FIELDS email UNIQUE;

DEFINE ACCESS IF NOT EXISTS account ON DATABASE TYPE RECORD
	SIGNUP (
		CREATE type::thing("account", <string> rand::uuid()) CONTENT {
			email: string::lowercase($email),
			password: crypto::argon2::generate($password)
		}
	)
	SIGNIN (
		SELECT * FROM account WHERE email = string::lowercase($email) AND crypto::argon2::compare(password, $password)
	)
	DURATION FOR TOKEN 15m, FOR SESSION 12h;

DEFINE TABLE IF NOT EXISTS password_reset SCHEMALESS PERMISSIONS NONE;

DEFINE FUNCTION IF NOT EXISTS fn::request_password_reset($email: string) {
	LET $account = (SELECT VALUE id FROM account WHERE email = string::lowercase($email) LIMIT 1)[0];
	IF $account != NONE {
		CREATE password_reset CONTENT {
			account: $account,
			token: rand::string(40),
			expires_at: time::now() + 1h
		};
	};
	RETURN true;
} PERMISSIONS FULL;

DEFINE TABLE IF NOT EXISTS documents SCHEMALESS
	PERMISSIONS FOR select, create, update, delete WHERE owner = $auth.id;
DEFINE INDEX IF NOT EXISTS documents_owner ON documents FIELDS owner;

DEFINE TABLE IF NOT EXISTS daily_tasks SCHEMALESS
	PERMISSIONS FOR select, create, update, delete WHERE owner = $auth.id;
DEFINE INDEX IF NOT EXISTS daily_tasks_owner ON daily_tasks FIELDS owner;

DEFINE TABLE IF NOT EXISTS finance SCHEMALESS
	PERMISSIONS FOR select, create, update, delete WHERE owner = $auth.id;
DEFINE INDEX IF NOT EXISTS finance_owner ON finance FIELDS owner UNIQUE;

DEFINE TABLE IF NOT EXISTS health_protocols SCHEMALESS
	PERMISSIONS FOR select, create, update, delete WHERE owner = $auth.id;
DEFINE INDEX IF NOT EXISTS health_protocols_owner ON health_protocols FIELDS owner;

DEFINE TABLE IF NOT EXISTS quit_habits SCHEMALESS
	PERMISSIONS FOR select, create, update, delete WHERE owner = $auth.id;
DEFINE INDEX IF NOT EXISTS quit_habits_owner ON quit_habits FIELDS owner;
`
