package db

var sqliteTables = []string{
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_uuid TEXT UNIQUE NOT NULL,
		server_name TEXT NOT NULL,
		world_name TEXT NOT NULL,
		player_uuid TEXT NOT NULL,
		player_name TEXT NOT NULL,
		message_content TEXT NOT NULL,
		message_type TEXT NOT NULL CHECK (message_type IN ('CHAT','PRIVATE','BROADCAST','COMMAND','SYSTEM','JOIN','LEAVE','DEATH','ACHIEVEMENT')),
		channel TEXT NOT NULL DEFAULT 'global',
		location_x REAL,
		location_y REAL,
		location_z REAL,
		recipient_uuid TEXT,
		recipient_name TEXT,
		is_cancelled INTEGER NOT NULL DEFAULT 0,
		metadata_json TEXT,
		logged_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_player_time ON chat_messages(player_uuid, logged_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_server_time ON chat_messages(server_name, logged_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_time ON chat_messages(logged_at)`,
	`CREATE TABLE IF NOT EXISTS command_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command_uuid TEXT UNIQUE NOT NULL,
		server_name TEXT NOT NULL,
		source_type TEXT NOT NULL CHECK (source_type IN ('PLAYER','CONSOLE','RCON','COMMAND_BLOCK','OTHER')),
		player_uuid TEXT,
		player_name TEXT,
		command_text TEXT NOT NULL,
		world_name TEXT,
		location_x REAL,
		location_y REAL,
		location_z REAL,
		is_cancelled INTEGER NOT NULL DEFAULT 0,
		metadata_json TEXT,
		logged_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cmd_player_time ON command_logs(player_uuid, logged_at)`,
	`CREATE INDEX IF NOT EXISTS idx_cmd_time ON command_logs(logged_at)`,
	`CREATE TABLE IF NOT EXISTS player_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_uuid TEXT UNIQUE NOT NULL,
		player_uuid TEXT NOT NULL,
		player_name TEXT NOT NULL,
		server_name TEXT NOT NULL,
		login_time DATETIME NOT NULL,
		logout_time DATETIME,
		ip_address TEXT,
		client_brand TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_player ON player_sessions(player_uuid, login_time)`,
	`CREATE TABLE IF NOT EXISTS server_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_uuid TEXT UNIQUE NOT NULL,
		server_name TEXT NOT NULL,
		event_type TEXT NOT NULL CHECK (event_type IN ('SERVER_START','SERVER_STOP','SERVER_RESTART','PLUGIN_LOAD','PLUGIN_UNLOAD','WORLD_LOAD','WORLD_UNLOAD','BACKUP','ERROR','WARNING','INFO')),
		message TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'LOW' CHECK (severity IN ('LOW','MEDIUM','HIGH','CRITICAL')),
		metadata_json TEXT,
		logged_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_time ON server_events(server_name, logged_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL
	)`,
}

var sqliteView = []string{
	`DROP VIEW IF EXISTS v_chat_messages_full`,
	`CREATE VIEW v_chat_messages_full AS
	SELECT c.id, c.message_uuid, c.server_name, c.world_name, c.player_uuid, c.player_name,
		c.message_content, c.message_type, c.channel, c.location_x, c.location_y, c.location_z,
		c.recipient_uuid, c.recipient_name, c.is_cancelled, c.metadata_json, c.logged_at,
		s.ip_address, s.client_brand
	FROM chat_messages c
	LEFT JOIN player_sessions s
		ON s.player_uuid = c.player_uuid
		AND s.server_name = c.server_name
		AND c.logged_at BETWEEN s.login_time AND COALESCE(s.logout_time, '9999-12-31 23:59:59.999999')`,
}

var mysqlTables = []string{
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		message_uuid VARCHAR(36) NOT NULL UNIQUE,
		server_name VARCHAR(64) NOT NULL,
		world_name VARCHAR(64) NOT NULL,
		player_uuid VARCHAR(36) NOT NULL,
		player_name VARCHAR(32) NOT NULL,
		message_content TEXT NOT NULL,
		message_type ENUM('CHAT','PRIVATE','BROADCAST','COMMAND','SYSTEM','JOIN','LEAVE','DEATH','ACHIEVEMENT') NOT NULL,
		channel VARCHAR(32) NOT NULL DEFAULT 'global',
		location_x DOUBLE NULL,
		location_y DOUBLE NULL,
		location_z DOUBLE NULL,
		recipient_uuid VARCHAR(36) NULL,
		recipient_name VARCHAR(32) NULL,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		metadata_json JSON NULL,
		logged_at DATETIME(6) NOT NULL,
		INDEX idx_chat_player_time (player_uuid, logged_at),
		INDEX idx_chat_server_time (server_name, logged_at),
		INDEX idx_chat_time (logged_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS command_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		command_uuid VARCHAR(36) NOT NULL UNIQUE,
		server_name VARCHAR(64) NOT NULL,
		source_type ENUM('PLAYER','CONSOLE','RCON','COMMAND_BLOCK','OTHER') NOT NULL,
		player_uuid VARCHAR(36) NULL,
		player_name VARCHAR(32) NULL,
		command_text TEXT NOT NULL,
		world_name VARCHAR(64) NULL,
		location_x DOUBLE NULL,
		location_y DOUBLE NULL,
		location_z DOUBLE NULL,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		metadata_json JSON NULL,
		logged_at DATETIME(6) NOT NULL,
		INDEX idx_cmd_player_time (player_uuid, logged_at),
		INDEX idx_cmd_time (logged_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS player_sessions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_uuid VARCHAR(36) NOT NULL UNIQUE,
		player_uuid VARCHAR(36) NOT NULL,
		player_name VARCHAR(32) NOT NULL,
		server_name VARCHAR(64) NOT NULL,
		login_time DATETIME(6) NOT NULL,
		logout_time DATETIME(6) NULL,
		ip_address VARCHAR(45) NULL,
		client_brand VARCHAR(64) NULL,
		INDEX idx_sessions_player (player_uuid, login_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS server_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		event_uuid VARCHAR(36) NOT NULL UNIQUE,
		server_name VARCHAR(64) NOT NULL,
		event_type ENUM('SERVER_START','SERVER_STOP','SERVER_RESTART','PLUGIN_LOAD','PLUGIN_UNLOAD','WORLD_LOAD','WORLD_UNLOAD','BACKUP','ERROR','WARNING','INFO') NOT NULL,
		message TEXT NOT NULL,
		severity ENUM('LOW','MEDIUM','HIGH','CRITICAL') NOT NULL DEFAULT 'LOW',
		metadata_json JSON NULL,
		logged_at DATETIME(6) NOT NULL,
		INDEX idx_events_time (server_name, logged_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token VARCHAR(64) PRIMARY KEY,
		user_id BIGINT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME(6) NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var mysqlView = []string{
	`CREATE OR REPLACE VIEW v_chat_messages_full AS
	SELECT c.id, c.message_uuid, c.server_name, c.world_name, c.player_uuid, c.player_name,
		c.message_content, c.message_type, c.channel, c.location_x, c.location_y, c.location_z,
		c.recipient_uuid, c.recipient_name, c.is_cancelled, c.metadata_json, c.logged_at,
		s.ip_address, s.client_brand
	FROM chat_messages c
	LEFT JOIN player_sessions s
		ON s.player_uuid = c.player_uuid
		AND s.server_name = c.server_name
		AND c.logged_at BETWEEN s.login_time AND COALESCE(s.logout_time, NOW(6))`,
}
