package sqlinline

const QListEvents = `--sql f2da342f-4cef-4ba6-916c-5454a278f978
select
  id::text,
  name,
  slug,
  description,
  company_name,
  logo_url,
  is_active,
  starts_at,
  ends_at,
  created_by::text,
  created_at,
  updated_at
from events
where (not $1::bool or is_active)
order by created_at desc;
`

const QSelectEventByID = `--sql 4c23b6d1-cf6e-434d-9efd-277d1a8f2e0b
select
  id::text, name, slug, description, company_name, logo_url, is_active,
  starts_at, ends_at, created_by::text, created_at, updated_at
from events
where id = $1::uuid
limit 1;
`

const QSelectEventBySlug = `--sql 79854e96-45dc-49cf-ae7e-54050d13d2bc
select
  id::text, name, slug, description, company_name, logo_url, is_active,
  starts_at, ends_at, created_by::text, created_at, updated_at
from events
where slug = $1::text
limit 1;
`

const QEventSlugExists = `--sql 4aad020d-76cf-4f82-b8d8-a05553466edc
select exists(
  select 1 from events
  where slug = $1::text
    and ($2::text = '' or id::text <> $2::text)
);
`

const QInsertEvent = `--sql d33608b3-d6ef-4a04-99a3-780333884d9d
insert into events(
  id,
  name,
  slug,
  description,
  company_name,
  logo_url,
  is_active,
  starts_at,
  ends_at,
  created_by,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::text,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::bool,
  $7::timestamptz,
  $8::timestamptz,
  nullif($9::text, '')::uuid,
  now(),
  now()
)
returning
  id::text, name, slug, description, company_name, logo_url, is_active,
  starts_at, ends_at, created_by::text, created_at, updated_at;
`

const QUpdateEvent = `--sql e4e08edb-cb4d-4b74-90cc-719f685de6ae
update events set
  name = coalesce($2::text, name),
  slug = coalesce($3::text, slug),
  description = coalesce($4::text, description),
  company_name = coalesce($5::text, company_name),
  logo_url = coalesce($6::text, logo_url),
  is_active = coalesce($7::bool, is_active),
  starts_at = coalesce($8::timestamptz, starts_at),
  ends_at = coalesce($9::timestamptz, ends_at),
  updated_at = now()
where id = $1::uuid
returning
  id::text, name, slug, description, company_name, logo_url, is_active,
  starts_at, ends_at, created_by::text, created_at, updated_at;
`

const QDeleteEvent = `--sql 2af6058d-d285-43c9-a224-ff5bc2197e87
delete from events where id = $1::uuid;
`

const QCountEvents = `--sql e6b00072-84cd-4995-961f-8c0fd63aee26
select
  count(*)::int,
  count(*) filter (where is_active)::int
from events;
`

const QSelectThemeByEvent = `--sql 2d22bd1c-3cf0-4310-8f2f-1ab771a2709e
select
  id::text,
  event_id::text,
  primary_color,
  secondary_color,
  accent_color,
  background_gradient_start,
  background_gradient_end,
  font_family,
  created_at,
  updated_at
from event_themes
where event_id = $1::uuid
limit 1;
`

const QUpsertTheme = `--sql 013a13b4-d50a-40e5-b3bc-e264d4e61bac
insert into event_themes(
  id,
  event_id,
  primary_color,
  secondary_color,
  accent_color,
  background_gradient_start,
  background_gradient_end,
  font_family,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  now(),
  now()
)
on conflict (event_id) do update set
  primary_color = excluded.primary_color,
  secondary_color = excluded.secondary_color,
  accent_color = excluded.accent_color,
  background_gradient_start = excluded.background_gradient_start,
  background_gradient_end = excluded.background_gradient_end,
  font_family = excluded.font_family,
  updated_at = now()
returning
  id::text, event_id::text, primary_color, secondary_color, accent_color,
  background_gradient_start, background_gradient_end, font_family, created_at, updated_at;
`
