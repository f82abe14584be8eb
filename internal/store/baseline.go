package store

// LookupTables are the reference tables every domain row depends on, in
// foreign key order.
var LookupTables = []string{"roles", "departments", "programs", "project_statuses", "publication_types"}

// DomainTables are the tables fixtures write to, parents before children.
var DomainTables = []string{
	"users",
	"students",
	"student_accounts",
	"projects",
	"project_members",
	"publications",
	"time_entries",
}

// Trigger names installed by the baseline schema.
const (
	TriggerStudentID = "trg_students_student_id"
	TriggerProjectID = "trg_projects_project_id"
)

// ProjectHoursView aggregates time entries per project.
const ProjectHoursView = "v_project_hours"

var mysqlBaseline = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS departments (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS programs (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS project_statuses (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS publication_types (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		email_id VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		role_id INT NOT NULL,
		department_id INT NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles (id),
		CONSTRAINT fk_users_department FOREIGN KEY (department_id) REFERENCES departments (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS students (
		id INT AUTO_INCREMENT PRIMARY KEY,
		student_id VARCHAR(20) NULL UNIQUE,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email_id VARCHAR(255) NULL,
		program_id INT NOT NULL,
		department_id INT NOT NULL,
		enrollment_year INT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_students_program FOREIGN KEY (program_id) REFERENCES programs (id),
		CONSTRAINT fk_students_department FOREIGN KEY (department_id) REFERENCES departments (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS student_accounts (
		id INT AUTO_INCREMENT PRIMARY KEY,
		student_id INT NOT NULL UNIQUE,
		user_id INT NOT NULL UNIQUE,
		CONSTRAINT fk_student_accounts_student FOREIGN KEY (student_id) REFERENCES students (id),
		CONSTRAINT fk_student_accounts_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS projects (
		id INT AUTO_INCREMENT PRIMARY KEY,
		project_id VARCHAR(20) NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		description TEXT NULL,
		status_id INT NOT NULL,
		lead_user_id INT NOT NULL,
		department_id INT NOT NULL,
		start_date DATE NULL,
		end_date DATE NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_projects_status FOREIGN KEY (status_id) REFERENCES project_statuses (id),
		CONSTRAINT fk_projects_lead FOREIGN KEY (lead_user_id) REFERENCES users (id),
		CONSTRAINT fk_projects_department FOREIGN KEY (department_id) REFERENCES departments (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS project_members (
		id INT AUTO_INCREMENT PRIMARY KEY,
		project_id INT NOT NULL,
		user_id INT NOT NULL,
		UNIQUE KEY uq_project_members (project_id, user_id),
		CONSTRAINT fk_project_members_project FOREIGN KEY (project_id) REFERENCES projects (id),
		CONSTRAINT fk_project_members_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS publications (
		id INT AUTO_INCREMENT PRIMARY KEY,
		publication_id VARCHAR(20) NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		type_id INT NOT NULL,
		project_id INT NULL,
		published_year INT NULL,
		doi VARCHAR(255) NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_publications_type FOREIGN KEY (type_id) REFERENCES publication_types (id),
		CONSTRAINT fk_publications_project FOREIGN KEY (project_id) REFERENCES projects (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		project_id INT NOT NULL,
		entry_date DATE NOT NULL,
		hours DECIMAL(5,2) NOT NULL,
		description TEXT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_time_entries_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT fk_time_entries_project FOREIGN KEY (project_id) REFERENCES projects (id)
	) ENGINE=InnoDB`,
	`CREATE OR REPLACE VIEW v_project_hours AS
		SELECT project_id, SUM(hours) AS total_hours
		FROM time_entries GROUP BY project_id`,
	`DROP TRIGGER IF EXISTS trg_students_student_id`,
	`CREATE TRIGGER trg_students_student_id BEFORE INSERT ON students
	FOR EACH ROW BEGIN
		IF NEW.student_id IS NULL OR NEW.student_id = '' THEN
			SET NEW.student_id = CONCAT('STU', YEAR(CURDATE()), LPAD(FLOOR(RAND() * 10000), 4, '0'));
		END IF;
	END`,
	`DROP TRIGGER IF EXISTS trg_projects_project_id`,
	`CREATE TRIGGER trg_projects_project_id BEFORE INSERT ON projects
	FOR EACH ROW BEGIN
		IF NEW.project_id IS NULL OR NEW.project_id = '' THEN
			SET NEW.project_id = CONCAT('PRJ', YEAR(CURDATE()), LPAD(FLOOR(RAND() * 10000), 4, '0'));
		END IF;
	END`,
}

// SQLite cannot assign NEW in a BEFORE trigger, so identifiers are
// filled by an AFTER INSERT update of the fresh row.
var sqliteBaseline = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS project_statuses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS publication_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email_id TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role_id INTEGER NOT NULL REFERENCES roles (id),
		department_id INTEGER NOT NULL REFERENCES departments (id),
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email_id TEXT,
		program_id INTEGER NOT NULL REFERENCES programs (id),
		department_id INTEGER NOT NULL REFERENCES departments (id),
		enrollment_year INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS student_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL UNIQUE REFERENCES students (id),
		user_id INTEGER NOT NULL UNIQUE REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT UNIQUE,
		title TEXT NOT NULL,
		description TEXT,
		status_id INTEGER NOT NULL REFERENCES project_statuses (id),
		lead_user_id INTEGER NOT NULL REFERENCES users (id),
		department_id INTEGER NOT NULL REFERENCES departments (id),
		start_date TEXT,
		end_date TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects (id),
		user_id INTEGER NOT NULL REFERENCES users (id),
		UNIQUE (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS publications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		publication_id TEXT UNIQUE,
		title TEXT NOT NULL,
		type_id INTEGER NOT NULL REFERENCES publication_types (id),
		project_id INTEGER REFERENCES projects (id),
		published_year INTEGER,
		doi TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users (id),
		project_id INTEGER NOT NULL REFERENCES projects (id),
		entry_date TEXT NOT NULL,
		hours REAL NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE VIEW IF NOT EXISTS v_project_hours AS
		SELECT project_id, SUM(hours) AS total_hours
		FROM time_entries GROUP BY project_id`,
	`CREATE TRIGGER IF NOT EXISTS trg_students_student_id AFTER INSERT ON students
	WHEN NEW.student_id IS NULL OR NEW.student_id = ''
	BEGIN
		UPDATE students
		SET student_id = 'STU' || strftime('%Y', 'now') || printf('%04d', abs(random()) % 10000)
		WHERE id = NEW.id;
	END`,
	`CREATE TRIGGER IF NOT EXISTS trg_projects_project_id AFTER INSERT ON projects
	WHEN NEW.project_id IS NULL OR NEW.project_id = ''
	BEGIN
		UPDATE projects
		SET project_id = 'PRJ' || strftime('%Y', 'now') || printf('%04d', abs(random()) % 10000)
		WHERE id = NEW.id;
	END`,
}
