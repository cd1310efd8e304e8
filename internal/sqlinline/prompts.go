package sqlinline

const QListEventPrompts = `--sql 4aeb6e89-eb68-42a5-b54d-41c1935697f4
select
  id::text,
  event_id::text,
  option_key,
  title,
  prompt_text,
  reference_image_url,
  preview_image_url,
  display_order,
  is_active,
  created_at,
  updated_at
from event_prompts
where event_id = $1::uuid
order by display_order asc, created_at asc;
`

const QSelectPromptByID = `--sql 89a37f1e-9245-4df1-ac25-f9f07f5eda21
select
  id::text, event_id::text, option_key, title, prompt_text, reference_image_url,
  preview_image_url, display_order, is_active, created_at, updated_at
from event_prompts
where id = $1::uuid
limit 1;
`

const QSelectPromptByKey = `--sql 7d66b009-3c88-4bb4-815b-e0f18458575e
select
  id::text, event_id::text, option_key, title, prompt_text, reference_image_url,
  preview_image_url, display_order, is_active, created_at, updated_at
from event_prompts
where event_id = $1::uuid
  and option_key = $2::text
limit 1;
`

const QPromptKeyExists = `--sql d9630880-35c1-4f1b-834c-ed33f501b8eb
select exists(
  select 1 from event_prompts
  where event_id = $1::uuid
    and option_key = $2::text
    and ($3::text = '' or id::text <> $3::text)
);
`

const QInsertPrompt = `--sql 903fddd9-8a94-4c5e-b511-5ecdacd98947
insert into event_prompts(
  id,
  event_id,
  option_key,
  title,
  prompt_text,
  reference_image_url,
  preview_image_url,
  display_order,
  is_active,
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
  $7::int,
  $8::bool,
  now(),
  now()
)
returning
  id::text, event_id::text, option_key, title, prompt_text, reference_image_url,
  preview_image_url, display_order, is_active, created_at, updated_at;
`

const QUpdatePrompt = `--sql 6647662a-e6fe-4513-bf3b-07df10d331dc
update event_prompts set
  option_key = coalesce($2::text, option_key),
  title = coalesce($3::text, title),
  prompt_text = coalesce($4::text, prompt_text),
  reference_image_url = coalesce($5::text, reference_image_url),
  preview_image_url = coalesce($6::text, preview_image_url),
  display_order = coalesce($7::int, display_order),
  is_active = coalesce($8::bool, is_active),
  updated_at = now()
where id = $1::uuid
returning
  id::text, event_id::text, option_key, title, prompt_text, reference_image_url,
  preview_image_url, display_order, is_active, created_at, updated_at;
`

const QDeletePrompt = `--sql a544149d-8a55-4d29-aeb3-d8429f400247
delete from event_prompts where id = $1::uuid;
`
